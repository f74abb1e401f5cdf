package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/msgmenu/internal/protocol"
)

// testLoop queues posted functions until the test drains them on its own goroutine.
type testLoop struct {
	mu    sync.Mutex
	queue []func()
}

func (l *testLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

func (l *testLoop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}

func (l *testLoop) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.drain()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type dismissCall struct {
	sources  []string
	messages []string
}

type fakeChannel struct {
	mu        sync.Mutex
	sources   []protocol.SourceRecord
	messages  []protocol.MessageRecord
	listGate  chan struct{}
	blockRPCs bool

	activatedSources  []string
	activatedMessages []string
	dismissals        []dismissCall

	pushes    chan protocol.Push
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		pushes: make(chan protocol.Push, 32),
		done:   make(chan struct{}),
	}
}

func (c *fakeChannel) wait(ctx context.Context) error {
	c.mu.Lock()
	gate := c.listGate
	c.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeChannel) ListSources(ctx context.Context) ([]protocol.SourceRecord, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.SourceRecord(nil), c.sources...), nil
}

func (c *fakeChannel) ListMessages(ctx context.Context) ([]protocol.MessageRecord, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.MessageRecord(nil), c.messages...), nil
}

func (c *fakeChannel) block(ctx context.Context) error {
	c.mu.Lock()
	blocking := c.blockRPCs
	c.mu.Unlock()
	if !blocking {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeChannel) ActivateSource(ctx context.Context, id string) error {
	c.mu.Lock()
	c.activatedSources = append(c.activatedSources, id)
	c.mu.Unlock()
	return c.block(ctx)
}

func (c *fakeChannel) ActivateMessage(ctx context.Context, id, actionID string, params []any) error {
	c.mu.Lock()
	c.activatedMessages = append(c.activatedMessages, id+"/"+actionID)
	c.mu.Unlock()
	return c.block(ctx)
}

func (c *fakeChannel) Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error {
	c.mu.Lock()
	c.dismissals = append(c.dismissals, dismissCall{
		sources:  append([]string(nil), sourceIDs...),
		messages: append([]string(nil), messageIDs...),
	})
	c.mu.Unlock()
	return c.block(ctx)
}

func (c *fakeChannel) Pushes() <-chan protocol.Push { return c.pushes }

func (c *fakeChannel) Done() <-chan struct{} { return c.done }

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeChannel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeChannel) dismissCalls() []dismissCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dismissCall(nil), c.dismissals...)
}

func (c *fakeChannel) sourceActivations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.activatedSources...)
}

type fakeConnector struct {
	mu       sync.Mutex
	channels map[string]*fakeChannel
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{channels: make(map[string]*fakeChannel)}
}

func (f *fakeConnector) add(endpoint string, ch *fakeChannel) {
	f.mu.Lock()
	f.channels[endpoint] = ch
	f.mu.Unlock()
}

func (f *fakeConnector) Connect(ctx context.Context, endpoint string) (protocol.Channel, error) {
	f.mu.Lock()
	ch, ok := f.channels[endpoint]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such endpoint %s", endpoint)
	}
	return ch, nil
}

var errNoDesktopFile = errors.New("no desktop file")

func testResolver() InfoResolver {
	return ResolverFunc(func(desktopID string) (AppInfo, error) {
		if CanonicalID(desktopID) == "unknown" {
			return AppInfo{}, errNoDesktopFile
		}
		return AppInfo{Name: desktopID, Icon: "icon-" + CanonicalID(desktopID)}, nil
	})
}

type harness struct {
	loop      *testLoop
	connector *fakeConnector
	reg       *Registry
	events    []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{loop: &testLoop{}, connector: newFakeConnector()}
	h.reg = New(testResolver(), h.connector, h.loop)
	h.reg.Subscribe(func(ev Event) { h.events = append(h.events, ev) })
	t.Cleanup(h.reg.Close)
	return h
}

// connect registers desktopID, attaches ch and waits for the initial sync.
func (h *harness) connect(t *testing.T, desktopID string, ch *fakeChannel) *Application {
	t.Helper()
	app, err := h.reg.Add(desktopID)
	if err != nil {
		t.Fatalf("Add(%q): %v", desktopID, err)
	}
	endpoint := "endpoint-" + app.ID
	h.connector.add(endpoint, ch)
	if err := h.reg.AttachRemote(app.ID, endpoint); err != nil {
		t.Fatalf("AttachRemote: %v", err)
	}
	h.loop.waitFor(t, func() bool { return app.State() == StateSynced })
	return app
}

func (h *harness) eventsOf(typ EventType) []Event {
	var out []Event
	for _, ev := range h.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// expectedNames derives the flat action set from the registry's live state.
func expectedNames(r *Registry) []string {
	names := []string{ActionRemoveAll}
	for _, app := range r.Applications() {
		for _, src := range app.Sources() {
			names = append(names, app.ID+".src."+src.ID)
		}
		for _, msg := range app.Messages() {
			names = append(names, app.ID+".msg."+msg.ID)
		}
	}
	sort.Strings(names)
	return names
}

func exportedNames(r *Registry) []string {
	names := r.Actions().List()
	sort.Strings(names)
	return names
}
