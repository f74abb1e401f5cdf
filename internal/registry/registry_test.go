package registry

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/example/msgmenu/internal/protocol"
)

func TestCanonicalID(t *testing.T) {
	cases := map[string]string{
		"org.example.Chat.desktop": "org_example_chat",
		"org.example.Chat":         "org_example_chat",
		"empathy.desktop":          "empathy",
		"a.desktop.b":              "a_desktop_b",
		" mail.desktop ":           "mail",
	}
	for in, want := range cases {
		got := CanonicalID(in)
		if got != want {
			t.Fatalf("CanonicalID(%q) = %q, expected %q", in, got, want)
		}
		if again := CanonicalID(got); again != got {
			t.Fatalf("CanonicalID not idempotent for %q: %q", got, again)
		}
	}
}

func TestAddIsIdempotent(t *testing.T) {
	h := newHarness(t)
	first, err := h.reg.Add("org.example.Chat.desktop")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	namesAfterFirst := exportedNames(h.reg)

	second, err := h.reg.Add("org.example.Chat.desktop")
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same application on re-add")
	}
	if got := len(h.reg.Applications()); got != 1 {
		t.Fatalf("expected 1 application, got %d", got)
	}
	if got := len(h.eventsOf(EventAppAdded)); got != 1 {
		t.Fatalf("expected 1 app-added event, got %d", got)
	}
	if !reflect.DeepEqual(namesAfterFirst, exportedNames(h.reg)) {
		t.Fatalf("action names changed on re-add")
	}
}

func TestAddUnknownApplication(t *testing.T) {
	h := newHarness(t)
	if _, err := h.reg.Add("unknown.desktop"); !errors.Is(err, ErrUnknownApplication) {
		t.Fatalf("expected ErrUnknownApplication, got %v", err)
	}
	if _, err := h.reg.Add("   "); !errors.Is(err, ErrUnknownApplication) {
		t.Fatalf("expected ErrUnknownApplication for empty id, got %v", err)
	}
	if len(h.reg.Applications()) != 0 {
		t.Fatalf("expected no applications")
	}
}

func TestAttachRequiresAdd(t *testing.T) {
	h := newHarness(t)
	if err := h.reg.AttachRemote("org_example_chat", "somewhere"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSourceLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: "alice", Count: 3}}
	app := h.connect(t, "org.example.Chat.desktop", ch)

	if app.ID != "org_example_chat" {
		t.Fatalf("expected canonical id org_example_chat, got %s", app.ID)
	}
	desc, ok := h.reg.Actions().Describe("org_example_chat.src.alice")
	if !ok {
		t.Fatalf("expected exported action org_example_chat.src.alice, have %v", h.reg.Actions().List())
	}
	want := SourceState{Count: 3, Time: 0, Extra: "", DrawsAttention: false}
	if desc.State != want {
		t.Fatalf("expected state %+v, got %+v", want, desc.State)
	}

	ch.pushes <- protocol.Push{Name: protocol.PushSourceRemoved, ID: "alice"}
	h.loop.waitFor(t, func() bool {
		_, exists := h.reg.Actions().Describe("org_example_chat.src.alice")
		return !exists
	})

	removed := h.eventsOf(EventSourceRemoved)
	if len(removed) != 1 || removed[0].AppID != "org_example_chat" || removed[0].ID != "alice" {
		t.Fatalf("unexpected source-removed events %+v", removed)
	}
}

func TestSourceChangedUpdatesState(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: "alice", Count: 1}}
	h.connect(t, "chat.desktop", ch)

	ch.pushes <- protocol.Push{Name: protocol.PushSourceChanged, Source: protocol.SourceRecord{ID: "alice", Count: 7, Extra: "x"}}
	ch.pushes <- protocol.Push{Name: protocol.PushSourceChanged, Source: protocol.SourceRecord{ID: "bob", Count: 1}}
	h.loop.waitFor(t, func() bool { return len(h.eventsOf(EventSourceAdded)) == 2 })

	desc, _ := h.reg.Actions().Describe("chat.src.alice")
	if desc.State != (SourceState{Count: 7, Extra: "x"}) {
		t.Fatalf("unexpected state %+v", desc.State)
	}
	if got := len(h.eventsOf(EventSourceChanged)); got != 1 {
		t.Fatalf("expected 1 source-changed event, got %d", got)
	}
	if _, ok := h.reg.Actions().Describe("chat.src.bob"); !ok {
		t.Fatalf("expected changed push for unknown id to upsert")
	}
}

func TestDismissRemovesBeforeRPCCompletes(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: "alice"}, {ID: "bob"}}
	ch.blockRPCs = true
	h.connect(t, "chat.desktop", ch)

	h.reg.Actions().Activate("chat.src.alice", false)
	if _, ok := h.reg.Actions().Describe("chat.src.alice"); ok {
		t.Fatalf("dismissed source must disappear synchronously")
	}
	h.reg.Actions().Activate("chat.src.bob", true)
	if _, ok := h.reg.Actions().Describe("chat.src.bob"); ok {
		t.Fatalf("activated source must disappear synchronously")
	}

	h.loop.waitFor(t, func() bool {
		return len(ch.dismissCalls()) == 1 && len(ch.sourceActivations()) == 1
	})
	if got := ch.dismissCalls()[0]; !reflect.DeepEqual(got.sources, []string{"alice"}) || len(got.messages) != 0 {
		t.Fatalf("unexpected dismiss call %+v", got)
	}
	if got := ch.sourceActivations(); got[0] != "bob" {
		t.Fatalf("unexpected activation %v", got)
	}
	if got := len(h.eventsOf(EventSourceRemoved)); got != 2 {
		t.Fatalf("expected 2 source-removed events, got %d", got)
	}
}

func TestMessageActivationAndDismiss(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.messages = []protocol.MessageRecord{{ID: "m1", Title: "hi"}, {ID: "m2"}, {ID: "m3", Actions: []protocol.MessageAction{{ID: "reply"}}}}
	h.connect(t, "mail.desktop", ch)

	h.reg.Actions().Activate("mail.msg.m1", true)
	h.reg.Actions().Activate("mail.msg.m2", false)
	if err := h.reg.ActivateMessageAction("mail", "m3", "reply", []any{"ok"}); err != nil {
		t.Fatalf("ActivateMessageAction: %v", err)
	}
	if err := h.reg.ActivateMessageAction("mail", "m3", "reply", nil); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}

	if got := exportedNames(h.reg); !reflect.DeepEqual(got, []string{ActionRemoveAll}) {
		t.Fatalf("expected only global actions, got %v", got)
	}
	h.loop.waitFor(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.activatedMessages) == 2 && len(ch.dismissals) == 1
	})
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !reflect.DeepEqual(ch.dismissals[0].messages, []string{"m2"}) {
		t.Fatalf("unexpected dismissal %+v", ch.dismissals[0])
	}
}

func TestUnknownMessageActionKeepsMessage(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.messages = []protocol.MessageRecord{{ID: "m1", Actions: []protocol.MessageAction{{ID: "reply"}}}}
	h.connect(t, "chat.desktop", ch)

	err := h.reg.ActivateMessageAction("chat", "m1", "no-such-action", nil)
	if !errors.Is(err, ErrUnknownMessageAction) {
		t.Fatalf("expected ErrUnknownMessageAction, got %v", err)
	}
	app, _ := h.reg.Lookup("chat")
	if msgs := app.Messages(); len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("message should survive, got %+v", msgs)
	}
	if got := exportedNames(h.reg); !reflect.DeepEqual(got, []string{"chat.msg.m1", ActionRemoveAll}) {
		t.Fatalf("unexpected actions %v", got)
	}
	if len(h.eventsOf(EventMessageRemoved)) != 0 {
		t.Fatalf("no message-removed event expected")
	}

	h.loop.drain()
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.activatedMessages) != 0 {
		t.Fatalf("no ActivateMessage call expected, got %v", ch.activatedMessages)
	}
}

func TestRemoveAllBatchesDismissPerApplication(t *testing.T) {
	h := newHarness(t)
	chat := newFakeChannel()
	chat.sources = []protocol.SourceRecord{{ID: "alice"}, {ID: "bob"}}
	chat.messages = []protocol.MessageRecord{{ID: "m1"}}
	mail := newFakeChannel()
	mail.messages = []protocol.MessageRecord{{ID: "n1"}, {ID: "n2"}}
	h.connect(t, "chat.desktop", chat)
	h.connect(t, "mail.desktop", mail)
	if _, err := h.reg.Add("idle.desktop"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	h.reg.Actions().Activate(ActionRemoveAll, nil)

	for _, app := range h.reg.Applications() {
		if len(app.Sources()) != 0 || len(app.Messages()) != 0 {
			t.Fatalf("application %s still has entries", app.ID)
		}
	}
	if got := exportedNames(h.reg); !reflect.DeepEqual(got, []string{ActionRemoveAll}) {
		t.Fatalf("expected only global actions, got %v", got)
	}
	if got := len(h.eventsOf(EventRemoveAll)); got != 1 {
		t.Fatalf("expected one remove-all event, got %d", got)
	}

	h.loop.waitFor(t, func() bool {
		return len(chat.dismissCalls()) == 1 && len(mail.dismissCalls()) == 1
	})
	if got := chat.dismissCalls()[0]; !reflect.DeepEqual(got.sources, []string{"alice", "bob"}) || !reflect.DeepEqual(got.messages, []string{"m1"}) {
		t.Fatalf("unexpected chat dismiss %+v", got)
	}
	if got := mail.dismissCalls()[0]; len(got.sources) != 0 || !reflect.DeepEqual(got.messages, []string{"n1", "n2"}) {
		t.Fatalf("unexpected mail dismiss %+v", got)
	}
}

func TestChannelLossClearsOnlyThatApplication(t *testing.T) {
	h := newHarness(t)
	chat := newFakeChannel()
	chat.sources = []protocol.SourceRecord{{ID: "alice"}}
	mail := newFakeChannel()
	mail.messages = []protocol.MessageRecord{{ID: "n1"}}
	chatApp := h.connect(t, "chat.desktop", chat)
	mailApp := h.connect(t, "mail.desktop", mail)

	_ = chat.Close()
	h.loop.waitFor(t, func() bool { return chatApp.State() == StateNoRemote })

	stopped := h.eventsOf(EventAppStopped)
	if len(stopped) != 1 || stopped[0].AppID != "chat" {
		t.Fatalf("unexpected app-stopped events %+v", stopped)
	}
	if len(chatApp.Sources()) != 0 {
		t.Fatalf("expected chat sources cleared")
	}
	if mailApp.State() != StateSynced || len(mailApp.Messages()) != 1 {
		t.Fatalf("mail application should be untouched, state=%s messages=%d", mailApp.State(), len(mailApp.Messages()))
	}
	if got := exportedNames(h.reg); !reflect.DeepEqual(got, []string{"mail.msg.n1", ActionRemoveAll}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestReattachIgnoresStaleCompletions(t *testing.T) {
	h := newHarness(t)
	app, _ := h.reg.Add("chat.desktop")

	old := newFakeChannel()
	old.sources = []protocol.SourceRecord{{ID: "stale"}}
	old.listGate = make(chan struct{})
	h.connector.add("old", old)

	fresh := newFakeChannel()
	fresh.sources = []protocol.SourceRecord{{ID: "fresh"}}
	h.connector.add("new", fresh)

	if err := h.reg.AttachRemote("chat", "old"); err != nil {
		t.Fatalf("AttachRemote old: %v", err)
	}
	h.loop.waitFor(t, func() bool { return app.session != nil && app.session.channel != nil })

	if err := h.reg.AttachRemote("chat", "new"); err != nil {
		t.Fatalf("AttachRemote new: %v", err)
	}
	close(old.listGate)
	h.loop.waitFor(t, func() bool { return app.State() == StateSynced })
	h.loop.drain()

	if got := exportedNames(h.reg); !reflect.DeepEqual(got, []string{"chat.src.fresh", ActionRemoveAll}) {
		t.Fatalf("unexpected names %v", got)
	}
	if !old.closed() {
		t.Fatalf("expected replaced channel to be closed")
	}
	if app.Endpoint() != "new" {
		t.Fatalf("expected endpoint new, got %s", app.Endpoint())
	}
}

func TestPushesBeforeListingAreReplayed(t *testing.T) {
	h := newHarness(t)
	app, _ := h.reg.Add("chat.desktop")
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: "alice"}}
	ch.listGate = make(chan struct{})
	h.connector.add("ep", ch)
	_ = h.reg.AttachRemote("chat", "ep")

	ch.pushes <- protocol.Push{Name: protocol.PushSourceAdded, Source: protocol.SourceRecord{ID: "bob"}}
	ch.pushes <- protocol.Push{Name: protocol.PushMessageAdded, Message: protocol.MessageRecord{ID: "m1"}}
	h.loop.waitFor(t, func() bool {
		return app.session != nil && len(app.session.pendingSources) == 1 && len(app.session.pendingMessages) == 1
	})
	if len(app.Sources()) != 0 {
		t.Fatalf("pushes must wait for the listing")
	}

	close(ch.listGate)
	h.loop.waitFor(t, func() bool { return app.State() == StateSynced })

	var ids []string
	for _, src := range app.Sources() {
		ids = append(ids, src.ID)
	}
	if !reflect.DeepEqual(ids, []string{"alice", "bob"}) {
		t.Fatalf("unexpected sources %v", ids)
	}
	if len(app.Messages()) != 1 {
		t.Fatalf("expected replayed message")
	}
}

func TestMalformedRecordsAreDropped(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: ""}, {ID: "ok"}}
	ch.messages = []protocol.MessageRecord{{ID: ""}}
	app := h.connect(t, "chat.desktop", ch)

	ch.pushes <- protocol.Push{Name: protocol.PushSourceAdded}
	ch.pushes <- protocol.Push{Name: "Bogus"}
	ch.pushes <- protocol.Push{Name: protocol.PushSourceAdded, Source: protocol.SourceRecord{ID: "late"}}
	h.loop.waitFor(t, func() bool { return len(app.Sources()) == 2 })
	if len(app.Messages()) != 0 {
		t.Fatalf("expected malformed message dropped")
	}
}

func TestRemoveEmitsStoppedAndDropsNamespace(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.sources = []protocol.SourceRecord{{ID: "alice"}}
	h.connect(t, "chat.desktop", ch)
	h.events = nil

	if !h.reg.Remove("chat.desktop") {
		t.Fatalf("expected Remove to report an existing application")
	}
	var types []EventType
	for _, ev := range h.events {
		types = append(types, ev.Type)
	}
	want := []EventType{EventSourceRemoved, EventAppStopped, EventAppRemoved}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	if _, ok := h.reg.Actions().Delegate("chat"); ok {
		t.Fatalf("expected namespace removed")
	}
	if !ch.closed() {
		t.Fatalf("expected channel closed")
	}
	if h.reg.Remove("chat") {
		t.Fatalf("second Remove should report false")
	}
}

func TestRemoveWithoutRemoteDoesNotEmitStopped(t *testing.T) {
	h := newHarness(t)
	_, _ = h.reg.Add("chat.desktop")
	h.reg.Remove("chat")
	if got := len(h.eventsOf(EventAppStopped)); got != 0 {
		t.Fatalf("expected no app-stopped event, got %d", got)
	}
}

func TestConnectFailureRevertsToNoRemote(t *testing.T) {
	h := newHarness(t)
	app, _ := h.reg.Add("chat.desktop")
	if err := h.reg.AttachRemote("chat", "nowhere"); err != nil {
		t.Fatalf("AttachRemote: %v", err)
	}
	if app.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", app.State())
	}
	h.loop.waitFor(t, func() bool { return app.State() == StateNoRemote })
	if got := len(h.eventsOf(EventAppStopped)); got != 1 {
		t.Fatalf("expected app-stopped after failed connect, got %d", got)
	}
}

func TestDrawsAttention(t *testing.T) {
	h := newHarness(t)
	ch := newFakeChannel()
	ch.messages = []protocol.MessageRecord{{ID: "m1", DrawsAttention: true}}
	h.connect(t, "mail.desktop", ch)
	if !h.reg.DrawsAttention() {
		t.Fatalf("expected attention")
	}
	h.reg.RemoveAll()
	if h.reg.DrawsAttention() {
		t.Fatalf("expected no attention after remove-all")
	}
}

func TestFlatNamesAlwaysMatchLiveState(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(42))
	desktopIDs := []string{"a.desktop", "b.desktop", "c.desktop"}
	channels := map[string]*fakeChannel{}
	ids := []string{"x", "y", "z"}

	for step := 0; step < 400; step++ {
		desktopID := desktopIDs[rng.Intn(len(desktopIDs))]
		appID := CanonicalID(desktopID)
		switch rng.Intn(7) {
		case 0:
			_, _ = h.reg.Add(desktopID)
		case 1:
			h.reg.Remove(appID)
		case 2:
			if _, ok := h.reg.Lookup(appID); ok {
				ch := newFakeChannel()
				ch.sources = []protocol.SourceRecord{{ID: ids[rng.Intn(len(ids))]}}
				endpoint := appID + "-" + string(rune('0'+step%10))
				h.connector.add(endpoint, ch)
				channels[appID] = ch
				_ = h.reg.AttachRemote(appID, endpoint)
			}
		case 3:
			if ch, ok := channels[appID]; ok && !ch.closed() {
				ch.pushes <- protocol.Push{Name: protocol.PushSourceAdded, Source: protocol.SourceRecord{ID: ids[rng.Intn(len(ids))]}}
				ch.pushes <- protocol.Push{Name: protocol.PushMessageAdded, Message: protocol.MessageRecord{ID: ids[rng.Intn(len(ids))]}}
			}
		case 4:
			if ch, ok := channels[appID]; ok && !ch.closed() {
				ch.pushes <- protocol.Push{Name: protocol.PushSourceRemoved, ID: ids[rng.Intn(len(ids))]}
			}
		case 5:
			if ch, ok := channels[appID]; ok {
				_ = ch.Close()
			}
		case 6:
			h.reg.Actions().Activate(appID+".src."+ids[rng.Intn(len(ids))], rng.Intn(2) == 0)
		}
		h.loop.drain()
		if got, want := exportedNames(h.reg), expectedNames(h.reg); !reflect.DeepEqual(got, want) {
			t.Fatalf("step %d: exported %v, expected %v", step, got, want)
		}
	}
}
