// A Registry is not safe for concurrent use. Every method must run on the
// goroutine draining its Dispatcher; remote replies are handed back through
// the Dispatcher so they never race with local mutation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/example/msgmenu/internal/action"
	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/protocol"
)

// ActionRemoveAll is the global action dismissing every source and message.
const ActionRemoveAll = "remove-all"

var (
	// ErrUnknownApplication is returned when no metadata exists for a desktop id.
	ErrUnknownApplication = errors.New("registry: unknown application")
	// ErrNotRegistered is returned for operations on an id that was never added.
	ErrNotRegistered = errors.New("registry: application not registered")
	// ErrUnknownMessage is returned for quick actions on a missing message.
	ErrUnknownMessage = errors.New("registry: unknown message")
	// ErrUnknownMessageAction is returned for a quick action the message does not offer.
	ErrUnknownMessageAction = errors.New("registry: unknown message action")
)

// Dispatcher runs functions on the registry's goroutine.
type Dispatcher interface {
	Post(fn func())
}

// InfoResolver resolves display metadata for a desktop id.
type InfoResolver interface {
	Resolve(desktopID string) (AppInfo, error)
}

// ResolverFunc adapts a function to InfoResolver.
type ResolverFunc func(desktopID string) (AppInfo, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(desktopID string) (AppInfo, error) {
	return f(desktopID)
}

// Registry owns all registered applications.
type Registry struct {
	resolver  InfoResolver
	connector protocol.Connector
	dispatch  Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	apps    map[string]*Application
	order   []string
	actions *action.Muxer
	global  *action.SimpleGroup

	subscribers    []subscriber
	nextSubscriber int
}

// New constructs an empty registry.
func New(resolver InfoResolver, connector protocol.Connector, dispatch Dispatcher) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		resolver:  resolver,
		connector: connector,
		dispatch:  dispatch,
		ctx:       ctx,
		cancel:    cancel,
		apps:      make(map[string]*Application),
		actions:   action.NewMuxer(),
		global:    action.NewSimpleGroup(),
	}
	r.global.Add(action.Action{
		Name:       ActionRemoveAll,
		Enabled:    true,
		OnActivate: func(any) { r.RemoveAll() },
	})
	_ = r.actions.Insert(action.Global, r.global)
	return r
}

// Actions returns the exported flat action collection.
func (r *Registry) Actions() *action.Muxer {
	return r.actions
}

// Add registers desktopID. Adding an id that is already present succeeds
// without changing anything.
func (r *Registry) Add(desktopID string) (*Application, error) {
	id := CanonicalID(desktopID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty desktop id", ErrUnknownApplication)
	}
	if app, ok := r.apps[id]; ok {
		return app, nil
	}

	info, err := r.resolver.Resolve(desktopID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownApplication, desktopID, err)
	}

	app := newApplication(desktopID, id, info)
	if err := r.actions.Insert(id, app.actions); err != nil {
		return nil, fmt.Errorf("register %s: %w", id, err)
	}
	r.apps[id] = app
	r.order = append(r.order, id)
	logging.Debugf("registry: added application %s (%s)", id, desktopID)
	r.emit(Event{Type: EventAppAdded, AppID: id, Info: info})
	return app, nil
}

// Lookup returns the application registered under id.
func (r *Registry) Lookup(id string) (*Application, bool) {
	app, ok := r.apps[CanonicalID(id)]
	return app, ok
}

// Applications returns registered applications in registration order.
func (r *Registry) Applications() []*Application {
	out := make([]*Application, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.apps[id])
	}
	return out
}

// Remove tears down and forgets an application. It reports whether the
// application existed.
func (r *Registry) Remove(id string) bool {
	id = CanonicalID(id)
	app, ok := r.apps[id]
	if !ok {
		logging.Debugf("registry: remove of unknown application %s ignored", id)
		return false
	}

	r.detach(app, "application removed")
	r.actions.Remove(id)
	delete(r.apps, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	logging.Debugf("registry: removed application %s", id)
	r.emit(Event{Type: EventAppRemoved, AppID: id})
	return true
}

// RemoveAll clears every source and message. Each application with a live
// remote receives exactly one Dismiss call listing everything it had.
func (r *Registry) RemoveAll() {
	for _, id := range r.order {
		app := r.apps[id]
		sourceIDs := app.sources.List()
		messageIDs := app.messages.List()
		if s := app.session; s != nil && s.channel != nil {
			logging.Debugf("registry: %s: dismissing sources %s and messages %s", app.ID,
				logging.Summarize(sourceIDs, 8), logging.Summarize(messageIDs, 8))
			r.call(app, "dismiss all", func(ctx context.Context, ch protocol.Channel) error {
				return ch.Dismiss(ctx, sourceIDs, messageIDs)
			})
		}
		r.clearSources(app)
		r.clearMessages(app)
	}
	logging.Debugf("registry: removed all sources and messages")
	r.emit(Event{Type: EventRemoveAll})
}

// ActivateMessageAction triggers one of a message's quick actions and drops
// the message locally. An action the message does not offer changes nothing.
func (r *Registry) ActivateMessageAction(appID, messageID, actionID string, params []any) error {
	app, ok := r.apps[CanonicalID(appID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, appID)
	}
	rec, ok := app.messageRecords[messageID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownMessage, app.ID, messageID)
	}
	if !slices.ContainsFunc(rec.Actions, func(a protocol.MessageAction) bool { return a.ID == actionID }) {
		return fmt.Errorf("%w: %s/%s/%s", ErrUnknownMessageAction, app.ID, messageID, actionID)
	}
	r.call(app, "activate message "+messageID, func(ctx context.Context, ch protocol.Channel) error {
		return ch.ActivateMessage(ctx, messageID, actionID, params)
	})
	r.removeMessage(app, messageID)
	return nil
}

// DrawsAttention reports whether any application asks for attention.
func (r *Registry) DrawsAttention() bool {
	for _, app := range r.apps {
		if app.DrawsAttention() {
			return true
		}
	}
	return false
}

// Close detaches every remote. The registry must not be used afterwards.
func (r *Registry) Close() {
	for _, id := range r.order {
		r.detach(r.apps[id], "registry closed")
	}
	r.cancel()
}

// call issues a fire-and-forget request on the application's channel.
// Failures are logged and never retried.
func (r *Registry) call(app *Application, what string, fn func(context.Context, protocol.Channel) error) {
	s := app.session
	if s == nil || s.channel == nil {
		logging.Debugf("registry: %s: no remote for %s", app.ID, what)
		return
	}
	ctx, ch, appID := s.ctx, s.channel, app.ID
	go func() {
		if err := fn(ctx, ch); err != nil && ctx.Err() == nil {
			log.Printf("registry: %s: %s failed: %v", appID, what, err)
		}
	}()
}

func activationFlag(param any) bool {
	if activate, ok := param.(bool); ok {
		return activate
	}
	return true
}

func (r *Registry) sourceAction(appID string, rec protocol.SourceRecord) action.Action {
	id := rec.ID
	return action.Action{
		Name:          id,
		ParameterType: action.ParameterBool,
		Enabled:       true,
		State:         sourceStateOf(rec),
		OnActivate: func(param any) {
			r.activateSource(appID, id, activationFlag(param))
		},
	}
}

func (r *Registry) messageAction(appID string, rec protocol.MessageRecord) action.Action {
	id := rec.ID
	return action.Action{
		Name:          id,
		ParameterType: action.ParameterBool,
		Enabled:       true,
		OnActivate: func(param any) {
			r.activateMessage(appID, id, activationFlag(param))
		},
	}
}

func (r *Registry) activateSource(appID, id string, activate bool) {
	app, ok := r.apps[appID]
	if !ok {
		return
	}
	if activate {
		r.call(app, "activate source "+id, func(ctx context.Context, ch protocol.Channel) error {
			return ch.ActivateSource(ctx, id)
		})
	} else {
		r.call(app, "dismiss source "+id, func(ctx context.Context, ch protocol.Channel) error {
			return ch.Dismiss(ctx, []string{id}, nil)
		})
	}
	r.removeSource(app, id)
}

func (r *Registry) activateMessage(appID, id string, activate bool) {
	app, ok := r.apps[appID]
	if !ok {
		return
	}
	if activate {
		r.call(app, "activate message "+id, func(ctx context.Context, ch protocol.Channel) error {
			return ch.ActivateMessage(ctx, id, "", nil)
		})
	} else {
		r.call(app, "dismiss message "+id, func(ctx context.Context, ch protocol.Channel) error {
			return ch.Dismiss(ctx, nil, []string{id})
		})
	}
	r.removeMessage(app, id)
}

func (r *Registry) upsertSource(app *Application, rec protocol.SourceRecord) {
	if _, exists := app.sourceRecords[rec.ID]; exists {
		app.sourceRecords[rec.ID] = rec
		app.sources.SetState(rec.ID, sourceStateOf(rec))
		r.emit(Event{Type: EventSourceChanged, AppID: app.ID, ID: rec.ID, Source: rec})
		return
	}
	app.sourceRecords[rec.ID] = rec
	app.sources.Add(r.sourceAction(app.ID, rec))
	r.emit(Event{Type: EventSourceAdded, AppID: app.ID, ID: rec.ID, Source: rec})
}

func (r *Registry) removeSource(app *Application, id string) bool {
	if _, exists := app.sourceRecords[id]; !exists {
		return false
	}
	delete(app.sourceRecords, id)
	app.sources.Remove(id)
	r.emit(Event{Type: EventSourceRemoved, AppID: app.ID, ID: id})
	return true
}

func (r *Registry) upsertMessage(app *Application, rec protocol.MessageRecord) {
	r.removeMessage(app, rec.ID)
	app.messageRecords[rec.ID] = rec
	app.messages.Add(r.messageAction(app.ID, rec))
	r.emit(Event{Type: EventMessageAdded, AppID: app.ID, ID: rec.ID, Message: rec})
}

func (r *Registry) removeMessage(app *Application, id string) bool {
	if _, exists := app.messageRecords[id]; !exists {
		return false
	}
	delete(app.messageRecords, id)
	app.messages.Remove(id)
	r.emit(Event{Type: EventMessageRemoved, AppID: app.ID, ID: id})
	return true
}

func (r *Registry) clearSources(app *Application) {
	for _, id := range app.sources.List() {
		r.removeSource(app, id)
	}
}

func (r *Registry) clearMessages(app *Application) {
	for _, id := range app.messages.List() {
		r.removeMessage(app, id)
	}
}
