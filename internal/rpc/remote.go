package rpc

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/example/msgmenu/internal/codec"
	"github.com/example/msgmenu/internal/ipc"
	"github.com/example/msgmenu/internal/protocol"
)

// Remote is the indicator's end of an application connection.
type Remote struct {
	conn   *Conn
	pushes chan protocol.Push
}

var _ protocol.Channel = (*Remote)(nil)

// NewRemote wraps rwc, which must be connected to an application.
func NewRemote(rwc io.ReadWriteCloser) *Remote {
	r := &Remote{
		conn:   NewConn(rwc, nil),
		pushes: make(chan protocol.Push, pushBuffer),
	}
	go r.decodePushes()
	return r
}

func (r *Remote) decodePushes() {
	defer close(r.pushes)
	for frame := range r.conn.Pushes() {
		p, err := DecodePush(frame)
		if err != nil {
			log.Printf("rpc: dropping malformed %s push: %v", frame.Method, err)
			continue
		}
		select {
		case r.pushes <- p:
		case <-r.conn.Done():
			return
		}
	}
}

// DecodePush decodes the payload of a push frame. Unknown push names are
// returned with only Name set.
func DecodePush(frame protocol.Frame) (protocol.Push, error) {
	p := protocol.Push{Name: frame.Method}
	switch frame.Method {
	case protocol.PushSourceAdded, protocol.PushSourceChanged:
		if err := codec.Unmarshal(frame.Params, &p.Source); err != nil {
			return p, err
		}
		p.ID = p.Source.ID
	case protocol.PushMessageAdded:
		if err := codec.Unmarshal(frame.Params, &p.Message); err != nil {
			return p, err
		}
		p.ID = p.Message.ID
	case protocol.PushSourceRemoved, protocol.PushMessageRemoved:
		var params protocol.IDParams
		if err := codec.Unmarshal(frame.Params, &params); err != nil {
			return p, err
		}
		p.ID = params.ID
	}
	return p, nil
}

// ListSources fetches every source. Records that fail to decode are dropped.
func (r *Remote) ListSources(ctx context.Context) ([]protocol.SourceRecord, error) {
	var raw []codec.RawMessage
	if err := r.conn.Call(ctx, protocol.MethodListSources, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]protocol.SourceRecord, 0, len(raw))
	for i, item := range raw {
		var rec protocol.SourceRecord
		if err := codec.Unmarshal(item, &rec); err != nil {
			log.Printf("rpc: dropping malformed source record %d: %v", i, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListMessages fetches every message. Records that fail to decode are dropped.
func (r *Remote) ListMessages(ctx context.Context) ([]protocol.MessageRecord, error) {
	var raw []codec.RawMessage
	if err := r.conn.Call(ctx, protocol.MethodListMessages, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]protocol.MessageRecord, 0, len(raw))
	for i, item := range raw {
		var rec protocol.MessageRecord
		if err := codec.Unmarshal(item, &rec); err != nil {
			log.Printf("rpc: dropping malformed message record %d: %v", i, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Remote) ActivateSource(ctx context.Context, id string) error {
	return r.conn.Call(ctx, protocol.MethodActivateSource, protocol.IDParams{ID: id}, nil)
}

func (r *Remote) ActivateMessage(ctx context.Context, id, actionID string, params []any) error {
	return r.conn.Call(ctx, protocol.MethodActivateMessage, protocol.ActivateMessageParams{ID: id, ActionID: actionID, Params: params}, nil)
}

func (r *Remote) Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error {
	return r.conn.Call(ctx, protocol.MethodDismiss, protocol.DismissParams{SourceIDs: sourceIDs, MessageIDs: messageIDs}, nil)
}

func (r *Remote) Pushes() <-chan protocol.Push { return r.pushes }

func (r *Remote) Done() <-chan struct{} { return r.conn.Done() }

func (r *Remote) Close() error { return r.conn.Close() }

// Dialer connects to application endpoints over ipc sockets.
type Dialer struct{}

// Connect dials endpoint, which is parsed with ipc.ParseEndpoint.
func (Dialer) Connect(ctx context.Context, endpoint string) (protocol.Channel, error) {
	ep, err := ipc.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	conn, err := ep.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep, err)
	}
	return NewRemote(conn), nil
}
