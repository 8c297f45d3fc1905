// Package rotation decides who receives a chore when it is created or
// generated from a recurring template.
package rotation

import (
	"fmt"
	"math/rand/v2"

	"github.com/choreboard/choreboard/internal/model"
)

// Policy is one of Fixed, RoundRobin or Random. A nil Policy leaves the
// chore unassigned.
type Policy interface {
	policy()
	// Members lists every user the policy can pick.
	Members() []int64
}

// Fixed always picks the same user.
type Fixed struct {
	UserID int64
}

// RoundRobin cycles through IDs in order.
type RoundRobin struct {
	IDs []int64
}

// Random picks uniformly from IDs.
type Random struct {
	IDs []int64
}

func (Fixed) policy()      {}
func (RoundRobin) policy() {}
func (Random) policy()     {}

func (p Fixed) Members() []int64      { return []int64{p.UserID} }
func (p RoundRobin) Members() []int64 { return p.IDs }
func (p Random) Members() []int64     { return p.IDs }

// Rand is the source of randomness for Random policies.
type Rand interface {
	IntN(n int) int
}

type defaultRand struct{}

func (defaultRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from math/rand/v2's global source.
var DefaultRand Rand = defaultRand{}

// FromFields builds a policy from the stored template or request columns.
// It returns nil when autoAssign is false or nothing identifies an assignee.
func FromFields(autoAssign bool, rotationType model.RotationType, assignedTo *int64, members []int64) (Policy, error) {
	if !autoAssign {
		return nil, nil
	}
	switch rotationType {
	case model.RotationNone, "":
		if assignedTo == nil {
			return nil, nil
		}
		if *assignedTo <= 0 {
			return nil, fmt.Errorf("assigned_to must be a positive user id")
		}
		return Fixed{UserID: *assignedTo}, nil
	case model.RotationRoundRobin:
		if err := validateMembers(members); err != nil {
			return nil, err
		}
		return RoundRobin{IDs: members}, nil
	case model.RotationRandom:
		if err := validateMembers(members); err != nil {
			return nil, err
		}
		return Random{IDs: members}, nil
	default:
		return nil, fmt.Errorf("unknown rotation type %q", rotationType)
	}
}

func validateMembers(members []int64) error {
	if len(members) == 0 {
		return fmt.Errorf("rotation_members must not be empty")
	}
	seen := make(map[int64]bool, len(members))
	for _, id := range members {
		if id <= 0 {
			return fmt.Errorf("rotation member %d is not a valid user id", id)
		}
		if seen[id] {
			return fmt.Errorf("rotation member %d is listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// Initial picks the assignee for a chore with no generation history.
func Initial(p Policy, rng Rand) *int64 {
	return Next(p, nil, rng)
}

// Next picks the assignee following last. For round robin the successor is
// (indexOf(last)+1) mod n, so a missing or unknown last assignee yields the
// first member.
func Next(p Policy, last *int64, rng Rand) *int64 {
	switch p := p.(type) {
	case Fixed:
		id := p.UserID
		return &id
	case RoundRobin:
		if len(p.IDs) == 0 {
			return nil
		}
		idx := -1
		if last != nil {
			for i, id := range p.IDs {
				if id == *last {
					idx = i
					break
				}
			}
		}
		id := p.IDs[(idx+1)%len(p.IDs)]
		return &id
	case Random:
		if len(p.IDs) == 0 {
			return nil
		}
		if rng == nil {
			rng = DefaultRand
		}
		id := p.IDs[rng.IntN(len(p.IDs))]
		return &id
	}
	return nil
}
