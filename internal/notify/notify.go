// Package notify fans lifecycle events out to the in-app inbox, connected
// websocket clients, web push subscriptions and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/push"
	"github.com/choreboard/choreboard/internal/store"
	"github.com/choreboard/choreboard/internal/websocket"
)

// Event is one notice addressed to users of a family.
type Event struct {
	FamilyID int64
	UserIDs  []int64
	// ToParents adds every active parent of the family as a recipient.
	ToParents bool
	// ActorID is never notified about their own action.
	ActorID int64
	Type    string
	Title   string
	Message string
	ChoreID *int64
	// Email also mails each recipient when a sender is configured.
	Email bool
}

type Hub interface {
	BroadcastFamily(familyID int64, msg websocket.Message)
	SendUser(familyID, userID int64, msg websocket.Message)
}

type Pusher interface {
	Send(ctx context.Context, sub model.PushSubscription, payload push.Payload) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Dispatcher delivers events on every configured channel. Delivery is best
// effort: failures are logged and never returned to the caller.
type Dispatcher struct {
	stores  *store.Stores
	hub     Hub
	pusher  Pusher
	mailer  Mailer
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// Options carries the optional channels. Nil channels are skipped.
type Options struct {
	Hub     Hub
	Pusher  Pusher
	Mailer  Mailer
	BaseURL string
}

func NewDispatcher(db store.DBTX, opts Options, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		stores:  store.New(db),
		hub:     opts.Hub,
		pusher:  opts.Pusher,
		mailer:  opts.Mailer,
		baseURL: opts.BaseURL,
		logger:  logger.With("component", "notify"),
		now:     time.Now,
	}
}

// ChoreChanged tells every connected client of the family to refresh a chore.
func (d *Dispatcher) ChoreChanged(familyID, choreID int64, action string) {
	if d.hub == nil {
		return
	}
	d.hub.BroadcastFamily(familyID, websocket.NewMessage("chore", action, choreID, nil))
}

// Notify delivers ev to its recipients.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	recipients, err := d.recipients(ctx, ev)
	if err != nil {
		d.logger.Error("resolve recipients", "type", ev.Type, "family_id", ev.FamilyID, "error", err)
		return
	}

	for _, u := range recipients {
		d.inApp(ctx, ev, u)
		d.push(ctx, ev, u)
		if ev.Email {
			d.email(ctx, ev, u)
		}
	}
}

func (d *Dispatcher) recipients(ctx context.Context, ev Event) ([]model.User, error) {
	seen := make(map[int64]bool)
	var out []model.User
	add := func(u *model.User) {
		if u == nil || !u.IsActive || u.ID == ev.ActorID || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, *u)
	}

	for _, id := range ev.UserIDs {
		u, err := d.stores.Users.GetInFamily(ctx, ev.FamilyID, id)
		if err != nil {
			return nil, err
		}
		add(u)
	}
	if ev.ToParents {
		parents, err := d.stores.Users.ListActiveParents(ctx, ev.FamilyID)
		if err != nil {
			return nil, err
		}
		for i := range parents {
			add(&parents[i])
		}
	}
	return out, nil
}

func (d *Dispatcher) inApp(ctx context.Context, ev Event, u model.User) {
	n, err := d.stores.Notifications.Create(ctx, model.Notification{
		FamilyID: ev.FamilyID,
		UserID:   u.ID,
		Type:     ev.Type,
		Title:    ev.Title,
		Message:  ev.Message,
		ChoreID:  ev.ChoreID,
	}, d.now())
	if err != nil {
		d.logger.Error("store notification", "user_id", u.ID, "type", ev.Type, "error", err)
		return
	}
	if d.hub == nil {
		return
	}
	extra := map[string]any{"type": n.Type, "title": n.Title, "message": n.Message}
	if n.ChoreID != nil {
		extra["chore_id"] = *n.ChoreID
	}
	d.hub.SendUser(ev.FamilyID, u.ID, websocket.NewMessage("notification", "created", n.ID, extra))
}

func (d *Dispatcher) push(ctx context.Context, ev Event, u model.User) {
	if d.pusher == nil {
		return
	}
	subs, err := d.stores.Push.ListByUser(ctx, u.ID)
	if err != nil {
		d.logger.Error("list push subscriptions", "user_id", u.ID, "error", err)
		return
	}

	payload := push.Payload{Title: ev.Title, Body: ev.Message, Tag: ev.Type, URL: d.link(ev)}
	for _, sub := range subs {
		err := d.pusher.Send(ctx, sub, payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			d.logger.Info("removing expired push subscription", "user_id", u.ID, "subscription_id", sub.ID)
			if err := d.stores.Push.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				d.logger.Error("delete push subscription", "subscription_id", sub.ID, "error", err)
			}
		case err != nil:
			d.logger.Warn("push failed", "user_id", u.ID, "subscription_id", sub.ID, "error", err)
		}
	}
}

func (d *Dispatcher) email(ctx context.Context, ev Event, u model.User) {
	if d.mailer == nil || u.Email == "" {
		return
	}
	link := d.baseURL + d.link(ev)
	text := fmt.Sprintf("%s\n\n%s", ev.Message, link)
	body := fmt.Sprintf(`<p>%s</p><p><a href="%s">Open Choreboard</a></p>`,
		html.EscapeString(ev.Message), html.EscapeString(link))
	if err := d.mailer.Send(ctx, u.Email, ev.Title, text, body); err != nil {
		d.logger.Warn("email failed", "user_id", u.ID, "type", ev.Type, "error", err)
	}
}

func (d *Dispatcher) link(ev Event) string {
	if ev.ChoreID != nil {
		return fmt.Sprintf("/chores/%d", *ev.ChoreID)
	}
	return "/"
}
