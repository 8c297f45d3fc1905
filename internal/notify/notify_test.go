package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/choreboard/choreboard/internal/logging"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/push"
	"github.com/choreboard/choreboard/internal/store"
	"github.com/choreboard/choreboard/internal/testutil"
	"github.com/choreboard/choreboard/internal/websocket"
)

type sent struct {
	familyID, userID int64
	msg              websocket.Message
}

type fakeHub struct {
	mu        sync.Mutex
	direct    []sent
	broadcast []sent
}

func (h *fakeHub) BroadcastFamily(familyID int64, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, sent{familyID: familyID, msg: msg})
}

func (h *fakeHub) SendUser(familyID, userID int64, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct = append(h.direct, sent{familyID: familyID, userID: userID, msg: msg})
}

type fakePusher struct {
	expired map[string]bool
	sent    []string
}

func (p *fakePusher) Send(_ context.Context, sub model.PushSubscription, _ push.Payload) error {
	p.sent = append(p.sent, sub.Endpoint)
	if p.expired[sub.Endpoint] {
		return push.ErrExpired
	}
	return nil
}

type fakeMailer struct {
	to []string
}

func (m *fakeMailer) Send(_ context.Context, to, _, _, _ string) error {
	m.to = append(m.to, to)
	return nil
}

func TestNotifyParentsSkipsActor(t *testing.T) {
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db, "Smith", "SMITH001")
	dad := testutil.AddUser(t, db, fam.Family.ID, "Dad", "dad@example.com", model.RoleParent)

	hub := &fakeHub{}
	mailer := &fakeMailer{}
	d := NewDispatcher(db, Options{Hub: hub, Mailer: mailer, BaseURL: "https://chores.test"}, logging.Discard())

	choreID := int64(5)
	d.Notify(context.Background(), Event{
		FamilyID:  fam.Family.ID,
		ToParents: true,
		ActorID:   fam.Parent.ID,
		Type:      model.NotifChoreSubmitted,
		Title:     "Chore submitted",
		Message:   "Child submitted Dishes",
		ChoreID:   &choreID,
		Email:     true,
	})

	st := store.New(db)
	dadInbox, _ := st.Notifications.ListByUser(context.Background(), dad.ID, false, 0)
	if len(dadInbox) != 1 || dadInbox[0].Type != model.NotifChoreSubmitted {
		t.Fatalf("dad inbox = %+v", dadInbox)
	}
	if dadInbox[0].ChoreID == nil || *dadInbox[0].ChoreID != choreID {
		t.Errorf("chore id = %v, want %d", dadInbox[0].ChoreID, choreID)
	}
	momInbox, _ := st.Notifications.ListByUser(context.Background(), fam.Parent.ID, false, 0)
	if len(momInbox) != 0 {
		t.Errorf("actor received %d notifications, want 0", len(momInbox))
	}

	if len(hub.direct) != 1 || hub.direct[0].userID != dad.ID {
		t.Errorf("live messages = %+v, want one to dad", hub.direct)
	}
	if hub.direct[0].msg.Type != "notification_created" {
		t.Errorf("message type = %q", hub.direct[0].msg.Type)
	}
	if len(mailer.to) != 1 || mailer.to[0] != "dad@example.com" {
		t.Errorf("emails = %v, want dad only", mailer.to)
	}
}

func TestNotifyIgnoresOtherFamiliesAndInactiveUsers(t *testing.T) {
	db := testutil.OpenDB(t)
	a := testutil.SeedFamily(t, db, "A", "FAMILYAA")
	b := testutil.SeedFamily(t, db, "B", "FAMILYBB")
	st := store.New(db)
	ctx := context.Background()

	if err := st.Users.UpdateProfile(ctx, a.Child.ID, a.Child.Name, model.RoleChild, false, testutil.Now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	d := NewDispatcher(db, Options{}, logging.Discard())
	d.Notify(ctx, Event{
		FamilyID: a.Family.ID,
		UserIDs:  []int64{a.Child.ID, b.Child.ID},
		Type:     model.NotifChoreAssigned,
		Title:    "New chore",
	})

	for _, id := range []int64{a.Child.ID, b.Child.ID} {
		n, _ := st.Notifications.CountUnread(ctx, id)
		if n != 0 {
			t.Errorf("user %d got %d notifications, want 0", id, n)
		}
	}
}

func TestNotifyDropsExpiredPushSubscriptions(t *testing.T) {
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db, "Smith", "SMITH001")
	st := store.New(db)
	ctx := context.Background()

	for _, ep := range []string{"https://push.test/live", "https://push.test/gone"} {
		if _, err := st.Push.Save(ctx, model.PushSubscription{
			UserID: fam.Child.ID, FamilyID: fam.Family.ID, Endpoint: ep, P256dhKey: "k", AuthKey: "a",
		}, testutil.Now); err != nil {
			t.Fatalf("save subscription: %v", err)
		}
	}

	pusher := &fakePusher{expired: map[string]bool{"https://push.test/gone": true}}
	d := NewDispatcher(db, Options{Pusher: pusher}, logging.Discard())
	d.Notify(ctx, Event{FamilyID: fam.Family.ID, UserIDs: []int64{fam.Child.ID}, Type: model.NotifChoreAssigned, Title: "New chore"})

	if len(pusher.sent) != 2 {
		t.Errorf("pushes = %d, want 2", len(pusher.sent))
	}
	subs, _ := st.Push.ListByUser(ctx, fam.Child.ID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.test/live" {
		t.Errorf("subscriptions = %+v, want only the live one", subs)
	}
}

func TestChoreChangedBroadcasts(t *testing.T) {
	hub := &fakeHub{}
	d := &Dispatcher{hub: hub}
	d.ChoreChanged(3, 9, "updated")

	if len(hub.broadcast) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.broadcast))
	}
	got := hub.broadcast[0]
	if got.familyID != 3 || got.msg.ID != 9 || got.msg.Type != "chore_updated" {
		t.Errorf("broadcast = %+v", got)
	}

	(&Dispatcher{}).ChoreChanged(3, 9, "updated")
}
