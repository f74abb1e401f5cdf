package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/example/msgmenu/internal/codec"
	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/protocol"
)

// ErrClosed is returned for calls on a connection that has shut down.
var ErrClosed = errors.New("rpc: connection closed")

const pushBuffer = 64

// RemoteError is an error reported by the peer in a reply frame.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Method, e.Message)
}

// Handler serves calls issued by the peer.
type Handler interface {
	ServeCall(ctx context.Context, method string, params codec.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, method string, params codec.RawMessage) (any, error)

// ServeCall calls f.
func (f HandlerFunc) ServeCall(ctx context.Context, method string, params codec.RawMessage) (any, error) {
	return f(ctx, method, params)
}

// Conn is one bidirectional connection. The indicator end issues calls and
// receives pushes; the application end serves calls and sends pushes.
type Conn struct {
	rwc     io.ReadWriteCloser
	handler Handler

	writeMu sync.Mutex
	enc     *codec.Encoder
	dec     *codec.Decoder

	mu      sync.Mutex
	pending map[string]chan protocol.Frame

	pushes chan protocol.Frame
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// NewConn starts reading from rwc. handler may be nil when the peer never
// issues calls.
func NewConn(rwc io.ReadWriteCloser, handler Handler) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		rwc:     rwc,
		handler: handler,
		enc:     codec.NewEncoder(rwc),
		dec:     codec.NewDecoder(rwc),
		pending: make(map[string]chan protocol.Frame),
		pushes:  make(chan protocol.Frame, pushBuffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a call frame and waits for its reply. result may be nil.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	frame := protocol.Frame{Kind: protocol.FrameCall, ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := codec.Marshal(params)
		if err != nil {
			return fmt.Errorf("rpc: encode %s params: %w", method, err)
		}
		frame.Params = raw
	}

	reply := make(chan protocol.Frame, 1)
	c.mu.Lock()
	if c.isDone() {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[frame.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.ID)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case f := <-reply:
		if f.Error != "" {
			return &RemoteError{Method: method, Message: f.Error}
		}
		if result != nil && len(f.Result) > 0 {
			if err := codec.Unmarshal(f.Result, result); err != nil {
				return fmt.Errorf("rpc: decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Push sends a push frame.
func (c *Conn) Push(name string, params any) error {
	frame := protocol.Frame{Kind: protocol.FramePush, Method: name}
	if params != nil {
		raw, err := codec.Marshal(params)
		if err != nil {
			return fmt.Errorf("rpc: encode %s push: %w", name, err)
		}
		frame.Params = raw
	}
	return c.write(frame)
}

// Pushes delivers push frames in receipt order. It is closed once the
// connection is gone.
func (c *Conn) Pushes() <-chan protocol.Frame {
	return c.pushes
}

// Done is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection shut down.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close shuts the connection down.
func (c *Conn) Close() error {
	err := c.rwc.Close()
	c.shutdown(ErrClosed)
	return err
}

func (c *Conn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) write(frame protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isDone() {
		return ErrClosed
	}
	if err := c.enc.Encode(frame); err != nil {
		c.shutdown(err)
		return fmt.Errorf("rpc: write %s: %w", frame.Kind, err)
	}
	return nil
}

func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.cancel()
		close(c.done)
		_ = c.rwc.Close()
	})
}

// readLoop is the only sender on c.pushes and closes it on exit.
func (c *Conn) readLoop() {
	defer close(c.pushes)
	for {
		var f protocol.Frame
		if err := c.dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			c.shutdown(err)
			return
		}
		switch f.Kind {
		case protocol.FrameReply:
			c.mu.Lock()
			reply, ok := c.pending[f.ID]
			c.mu.Unlock()
			if !ok {
				logging.Debugf("rpc: dropping reply to unknown call %s", f.ID)
				continue
			}
			select {
			case reply <- f:
			default:
				logging.Debugf("rpc: dropping duplicate reply to %s", f.ID)
			}
		case protocol.FrameCall:
			go c.serve(f)
		case protocol.FramePush:
			select {
			case c.pushes <- f:
			case <-c.done:
				return
			}
		default:
			logging.Debugf("rpc: ignoring frame of kind %q", f.Kind)
		}
	}
}

func (c *Conn) serve(f protocol.Frame) {
	reply := protocol.Frame{Kind: protocol.FrameReply, ID: f.ID}
	if c.handler == nil {
		reply.Error = "no handler for " + f.Method
	} else if result, err := c.handler.ServeCall(c.ctx, f.Method, f.Params); err != nil {
		reply.Error = err.Error()
	} else if result != nil {
		raw, err := codec.Marshal(result)
		if err != nil {
			reply.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			reply.Result = raw
		}
	}
	if err := c.write(reply); err != nil && !errors.Is(err, ErrClosed) {
		logging.Debugf("rpc: reply to %s: %v", f.Method, err)
	}
}
