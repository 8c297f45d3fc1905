// Package category infers a household area for a chore from its title.
package category

import "strings"

// Categories returned by Infer.
const (
	Kitchen  = "kitchen"
	Laundry  = "laundry"
	Cleaning = "cleaning"
	Yard     = "yard"
	Trash    = "trash"
	Pets     = "pets"
	Bedroom  = "bedroom"
	Errands  = "errands"
	Other    = "other"
)

// Infer returns the category for a chore title. Matching is case-insensitive:
// exact title first, then the first keyword contained in the title. Titles
// with no match fall back to Other.
func Infer(title string) string {
	name := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if name == "" {
		return Other
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range keywordMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Other
}

// OrInfer keeps an explicit category and infers one only when it is blank.
func OrInfer(category, title string) string {
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return Infer(title)
}

var exactMatch = map[string]string{
	"dishes":       Kitchen,
	"cook":         Kitchen,
	"cooking":      Kitchen,
	"set table":    Kitchen,
	"clear table":  Kitchen,
	"laundry":      Laundry,
	"ironing":      Laundry,
	"dust":         Cleaning,
	"dusting":      Cleaning,
	"vacuum":       Cleaning,
	"vacuuming":    Cleaning,
	"mop":          Cleaning,
	"mopping":      Cleaning,
	"sweep":        Cleaning,
	"sweeping":     Cleaning,
	"mow":          Yard,
	"mowing":       Yard,
	"weeding":      Yard,
	"gardening":    Yard,
	"trash":        Trash,
	"garbage":      Trash,
	"recycling":    Trash,
	"compost":      Trash,
	"walk dog":     Pets,
	"feed cat":     Pets,
	"feed dog":     Pets,
	"make bed":     Bedroom,
	"clean room":   Bedroom,
	"tidy room":    Bedroom,
	"groceries":    Errands,
	"get the mail": Errands,
}

type keywordEntry struct {
	keyword  string
	category string
}

// Order matters: the first contained keyword wins, so "bathroom" sits ahead
// of "room".
var keywordMatches = []keywordEntry{
	{"dishwasher", Kitchen},
	{"dish", Kitchen},
	{"kitchen", Kitchen},
	{"counter", Kitchen},
	{"fridge", Kitchen},
	{"lunch", Kitchen},
	{"dinner", Kitchen},
	{"breakfast", Kitchen},
	{"table", Kitchen},

	{"fold", Laundry},
	{"laundry", Laundry},
	{"clothes", Laundry},
	{"towels", Laundry},
	{"sheets", Laundry},

	{"litter", Pets},
	{"dog", Pets},
	{"cat", Pets},
	{"fish tank", Pets},
	{"hamster", Pets},
	{"pet", Pets},

	{"trash", Trash},
	{"garbage", Trash},
	{"bins", Trash},
	{"recycl", Trash},
	{"compost", Trash},

	{"lawn", Yard},
	{"mow", Yard},
	{"weed", Yard},
	{"rake", Yard},
	{"leaves", Yard},
	{"garden", Yard},
	{"water plants", Yard},
	{"snow", Yard},
	{"yard", Yard},

	{"bathroom", Cleaning},
	{"toilet", Cleaning},

	{"bedroom", Bedroom},
	{"make bed", Bedroom},
	{"make your bed", Bedroom},
	{"toys", Bedroom},
	{"room", Bedroom},

	{"grocer", Errands},
	{"mail", Errands},
	{"store", Errands},
	{"car", Errands},

	{"vacuum", Cleaning},
	{"mop", Cleaning},
	{"sweep", Cleaning},
	{"dust", Cleaning},
	{"window", Cleaning},
	{"wipe", Cleaning},
	{"scrub", Cleaning},
	{"clean", Cleaning},
	{"tidy", Cleaning},
}
