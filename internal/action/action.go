package action

import "errors"

// ErrInvalidNamespace is returned when a namespace contains the flattening separator.
var ErrInvalidNamespace = errors.New("action: namespace must not contain '.'")

// ParameterBool is the parameter type tag for actions activated with a boolean.
const ParameterBool = "b"

// Descriptor describes one exposed action.
type Descriptor struct {
	Name          string `cbor:"name" json:"name"`
	ParameterType string `cbor:"parameter_type,omitempty" json:"parameterType,omitempty"`
	Enabled       bool   `cbor:"enabled" json:"enabled"`
	State         any    `cbor:"state,omitempty" json:"state,omitempty"`
}

// EventType identifies the kind of change a Group reports to observers.
type EventType int

const (
	// EventAdded reports a new action.
	EventAdded EventType = iota + 1
	// EventRemoved reports an action that no longer exists.
	EventRemoved
	// EventEnabledChanged reports a toggled enabled flag.
	EventEnabledChanged
	// EventStateChanged reports a new state value.
	EventStateChanged
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventEnabledChanged:
		return "enabled-changed"
	case EventStateChanged:
		return "state-changed"
	default:
		return "unknown"
	}
}

// Event is delivered to observers whenever a group changes.
type Event struct {
	Type    EventType
	Name    string
	Enabled bool
	State   any
}

// Observer receives group events.
type Observer func(Event)

// Group is a named set of activatable, optionally stateful actions.
//
// Groups are not safe for concurrent use; every call is expected to come from
// the main loop goroutine.
type Group interface {
	List() []string
	Describe(name string) (Descriptor, bool)
	Activate(name string, param any)
	ChangeState(name string, value any)
	Subscribe(obs Observer) (cancel func())
}

type observerList struct {
	next    int
	entries []observerEntry
}

type observerEntry struct {
	id  int
	obs Observer
}

func (l *observerList) add(obs Observer) func() {
	l.next++
	id := l.next
	l.entries = append(l.entries, observerEntry{id: id, obs: obs})
	return func() {
		for i, entry := range l.entries {
			if entry.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *observerList) emit(ev Event) {
	if len(l.entries) == 0 {
		return
	}
	snapshot := make([]observerEntry, len(l.entries))
	copy(snapshot, l.entries)
	for _, entry := range snapshot {
		entry.obs(ev)
	}
}
