package protocol

import (
	"context"

	"github.com/example/msgmenu/internal/codec"
)

// Commands accepted by the indicator service socket.
const (
	// CommandRegister registers a desktop id and attaches its menu endpoint.
	CommandRegister = "register"
	// CommandUnregister forgets a desktop id.
	CommandUnregister = "unregister"
	// CommandActions lists the exported flat action collection.
	CommandActions = "actions"
	// CommandActivate activates one exported action.
	CommandActivate = "activate"
	// CommandMenu returns the current menu model.
	CommandMenu = "menu"
	// CommandRemoveAll dismisses every source and message.
	CommandRemoveAll = "remove-all"
	// CommandMessageAction triggers a quick action of a message.
	CommandMessageAction = "message-action"
)

// Request is the payload sent to the indicator service.
type Request struct {
	Token     string `cbor:"token,omitempty"`
	Command   string `cbor:"command"`
	DesktopID string `cbor:"desktop_id,omitempty"`
	MenuPath  string `cbor:"menu_path,omitempty"`
	Action    string `cbor:"action,omitempty"`
	Parameter *bool  `cbor:"parameter,omitempty"`
	MessageID string `cbor:"message_id,omitempty"`
	ActionID  string `cbor:"action_id,omitempty"`
	Params    []any  `cbor:"params,omitempty"`
}

// Response is the reply emitted by the service. Data carries the
// command-specific payload.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Methods invoked by the indicator on a registered application.
const (
	MethodListSources     = "ListSources"
	MethodListMessages    = "ListMessages"
	MethodActivateSource  = "ActivateSource"
	MethodActivateMessage = "ActivateMessage"
	MethodDismiss         = "Dismiss"
)

// Push names sent by a registered application.
const (
	PushSourceAdded    = "SourceAdded"
	PushSourceChanged  = "SourceChanged"
	PushSourceRemoved  = "SourceRemoved"
	PushMessageAdded   = "MessageAdded"
	PushMessageRemoved = "MessageRemoved"
)

// SourceRecord is one conversation or account entry as reported by an application.
type SourceRecord struct {
	ID             string `cbor:"id"`
	Label          string `cbor:"label"`
	Icon           string `cbor:"icon"`
	Count          uint32 `cbor:"count"`
	Time           int64  `cbor:"time"`
	Extra          string `cbor:"extra"`
	DrawsAttention bool   `cbor:"draws_attention"`
}

// MessageAction is a quick action offered by a message.
type MessageAction struct {
	ID         string   `cbor:"id"`
	Label      string   `cbor:"label"`
	Icon       string   `cbor:"icon,omitempty"`
	ParamTypes []string `cbor:"param_types,omitempty"`
}

// MessageRecord is one notification as reported by an application.
type MessageRecord struct {
	ID             string          `cbor:"id"`
	Icon           string          `cbor:"icon"`
	Title          string          `cbor:"title"`
	Subtitle       string          `cbor:"subtitle"`
	Body           string          `cbor:"body"`
	Time           int64           `cbor:"time"`
	Actions        []MessageAction `cbor:"actions,omitempty"`
	DrawsAttention bool            `cbor:"draws_attention"`
}

// ActivateMessageParams is the argument of MethodActivateMessage.
type ActivateMessageParams struct {
	ID       string `cbor:"id"`
	ActionID string `cbor:"action_id"`
	Params   []any  `cbor:"params,omitempty"`
}

// DismissParams is the argument of MethodDismiss.
type DismissParams struct {
	SourceIDs  []string `cbor:"source_ids"`
	MessageIDs []string `cbor:"message_ids"`
}

// IDParams carries a single identifier.
type IDParams struct {
	ID string `cbor:"id"`
}

// Frame kinds multiplexed on an application connection.
const (
	FrameCall  = "call"
	FrameReply = "reply"
	FramePush  = "push"
)

// Frame is one unit on a bidirectional application connection.
type Frame struct {
	Kind   string           `cbor:"kind"`
	ID     string           `cbor:"id,omitempty"`
	Method string           `cbor:"method,omitempty"`
	Params codec.RawMessage `cbor:"params,omitempty"`
	Result codec.RawMessage `cbor:"result,omitempty"`
	Error  string           `cbor:"error,omitempty"`
}

// Push is a decoded state change pushed by an application.
type Push struct {
	Name    string
	Source  SourceRecord
	Message MessageRecord
	ID      string
}

// Channel is the indicator's view of one registered application. Every call
// blocks until the reply arrives or ctx is done.
type Channel interface {
	ListSources(ctx context.Context) ([]SourceRecord, error)
	ListMessages(ctx context.Context) ([]MessageRecord, error)
	ActivateSource(ctx context.Context, id string) error
	ActivateMessage(ctx context.Context, id, actionID string, params []any) error
	Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error

	// Pushes delivers application pushes in receipt order; it is closed
	// once the connection is gone.
	Pushes() <-chan Push
	// Done is closed when the connection is lost.
	Done() <-chan struct{}
	Close() error
}

// Connector opens channels to application endpoints.
type Connector interface {
	Connect(ctx context.Context, endpoint string) (Channel, error)
}
