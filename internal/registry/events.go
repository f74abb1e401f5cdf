package registry

import "github.com/example/msgmenu/internal/protocol"

// EventType identifies a registry lifecycle event.
type EventType int

const (
	// EventAppAdded is emitted once per Add of a new application.
	EventAppAdded EventType = iota + 1
	// EventAppRemoved is emitted when an application is removed.
	EventAppRemoved
	// EventAppStopped is emitted when an application's remote goes away.
	EventAppStopped
	// EventSourceAdded reports a new source.
	EventSourceAdded
	// EventSourceChanged reports an updated source.
	EventSourceChanged
	// EventSourceRemoved reports a removed source.
	EventSourceRemoved
	// EventMessageAdded reports a new message.
	EventMessageAdded
	// EventMessageRemoved reports a removed message.
	EventMessageRemoved
	// EventRemoveAll is emitted after every source and message was cleared.
	EventRemoveAll
)

func (t EventType) String() string {
	switch t {
	case EventAppAdded:
		return "app-added"
	case EventAppRemoved:
		return "app-removed"
	case EventAppStopped:
		return "app-stopped"
	case EventSourceAdded:
		return "source-added"
	case EventSourceChanged:
		return "source-changed"
	case EventSourceRemoved:
		return "source-removed"
	case EventMessageAdded:
		return "message-added"
	case EventMessageRemoved:
		return "message-removed"
	case EventRemoveAll:
		return "remove-all"
	default:
		return "unknown"
	}
}

// Event is delivered to registry subscribers. ID holds the source or message
// id for source and message events; Source and Message are set on added and
// changed events.
type Event struct {
	Type    EventType
	AppID   string
	Info    AppInfo
	ID      string
	Source  protocol.SourceRecord
	Message protocol.MessageRecord
}

type subscriber struct {
	id int
	fn func(Event)
}

func (r *Registry) emit(ev Event) {
	if len(r.subscribers) == 0 {
		return
	}
	snapshot := make([]subscriber, len(r.subscribers))
	copy(snapshot, r.subscribers)
	for _, sub := range snapshot {
		sub.fn(ev)
	}
}

// Subscribe registers fn for every lifecycle event and returns a function
// that removes it. Events are delivered on the main loop.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.nextSubscriber++
	id := r.nextSubscriber
	r.subscribers = append(r.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range r.subscribers {
			if sub.id == id {
				r.subscribers = append(r.subscribers[:i:i], r.subscribers[i+1:]...)
				return
			}
		}
	}
}
