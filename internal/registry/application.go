package registry

import (
	"context"

	"github.com/example/msgmenu/internal/action"
	"github.com/example/msgmenu/internal/protocol"
)

const (
	namespaceSources  = "src"
	namespaceMessages = "msg"
)

// State is the connection state of a registered application.
type State int

const (
	// StateNoRemote means registered without a live remote endpoint.
	StateNoRemote State = iota
	// StateConnecting means a remote is attached but not yet fully listed.
	StateConnecting
	// StateSynced means both initial listings have been applied.
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateNoRemote:
		return "no-remote"
	case StateConnecting:
		return "connecting"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// AppInfo is the display metadata of an application.
type AppInfo struct {
	Name string `cbor:"name"`
	Icon string `cbor:"icon,omitempty"`
}

// SourceState is the state value carried by a source action.
type SourceState struct {
	Count          uint32 `cbor:"count"`
	Time           int64  `cbor:"time"`
	Extra          string `cbor:"extra"`
	DrawsAttention bool   `cbor:"draws_attention"`
}

func sourceStateOf(rec protocol.SourceRecord) SourceState {
	return SourceState{Count: rec.Count, Time: rec.Time, Extra: rec.Extra, DrawsAttention: rec.DrawsAttention}
}

// Application is one registered client.
type Application struct {
	ID        string
	DesktopID string
	Info      AppInfo

	sources  *action.SimpleGroup
	messages *action.SimpleGroup
	actions  *action.Muxer

	sourceRecords  map[string]protocol.SourceRecord
	messageRecords map[string]protocol.MessageRecord

	session *session
	// active is set from the moment a remote is attached until the
	// matching app-stopped event has been emitted.
	active bool
}

// session is one attached remote endpoint. Completions of its requests carry
// the generation they were issued under and are dropped once it changes.
type session struct {
	generation string
	endpoint   string
	ctx        context.Context
	cancel     context.CancelFunc
	channel    protocol.Channel

	sourcesListed   bool
	messagesListed  bool
	pendingSources  []protocol.Push
	pendingMessages []protocol.Push
}

func (s *session) synced() bool {
	return s.channel != nil && s.sourcesListed && s.messagesListed
}

func newApplication(desktopID, id string, info AppInfo) *Application {
	app := &Application{
		ID:             id,
		DesktopID:      desktopID,
		Info:           info,
		sources:        action.NewSimpleGroup(),
		messages:       action.NewSimpleGroup(),
		actions:        action.NewMuxer(),
		sourceRecords:  make(map[string]protocol.SourceRecord),
		messageRecords: make(map[string]protocol.MessageRecord),
	}
	_ = app.actions.Insert(namespaceSources, app.sources)
	_ = app.actions.Insert(namespaceMessages, app.messages)
	return app
}

// State reports the connection state.
func (a *Application) State() State {
	switch {
	case a.session == nil:
		return StateNoRemote
	case a.session.synced():
		return StateSynced
	default:
		return StateConnecting
	}
}

// Endpoint returns the attached remote endpoint, or "" without a remote.
func (a *Application) Endpoint() string {
	if a.session == nil {
		return ""
	}
	return a.session.endpoint
}

// Actions returns the application's muxer combining "src" and "msg".
func (a *Application) Actions() action.Group {
	return a.actions
}

// Sources returns the live sources in insertion order.
func (a *Application) Sources() []protocol.SourceRecord {
	names := a.sources.List()
	out := make([]protocol.SourceRecord, 0, len(names))
	for _, name := range names {
		out = append(out, a.sourceRecords[name])
	}
	return out
}

// Messages returns the live messages in insertion order.
func (a *Application) Messages() []protocol.MessageRecord {
	names := a.messages.List()
	out := make([]protocol.MessageRecord, 0, len(names))
	for _, name := range names {
		out = append(out, a.messageRecords[name])
	}
	return out
}

// DrawsAttention reports whether any live source or message asks for attention.
func (a *Application) DrawsAttention() bool {
	for _, rec := range a.sourceRecords {
		if rec.DrawsAttention {
			return true
		}
	}
	for _, rec := range a.messageRecords {
		if rec.DrawsAttention {
			return true
		}
	}
	return false
}
