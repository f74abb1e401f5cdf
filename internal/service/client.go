package service

import (
	"context"
	"fmt"
	"time"

	"github.com/example/msgmenu/internal/action"
	"github.com/example/msgmenu/internal/codec"
	"github.com/example/msgmenu/internal/ipc"
	"github.com/example/msgmenu/internal/protocol"
)

// ResponseError is an error reported by the service.
type ResponseError struct {
	Command string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Client issues one request per connection to the service socket.
type Client struct {
	endpoint ipc.Endpoint
	token    string
	timeout  time.Duration
}

// NewClient returns a client for the service at endpoint.
func NewClient(endpoint ipc.Endpoint, token string) *Client {
	return &Client{endpoint: endpoint, token: token, timeout: 10 * time.Second}
}

// Do sends req and decodes the reply payload into out, which may be nil.
func (c *Client) Do(ctx context.Context, req protocol.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.endpoint.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.endpoint, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req.Token = c.token
	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Command, err)
	}
	var resp protocol.Response
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read %s reply: %w", req.Command, err)
	}
	if !resp.OK {
		return &ResponseError{Command: req.Command, Message: resp.Error}
	}
	if out != nil && len(resp.Data) > 0 {
		if err := codec.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode %s reply: %w", req.Command, err)
		}
	}
	return nil
}

// Register registers desktopID with the application endpoint menuPath.
func (c *Client) Register(ctx context.Context, desktopID, menuPath string) (Registration, error) {
	var reg Registration
	err := c.Do(ctx, protocol.Request{Command: protocol.CommandRegister, DesktopID: desktopID, MenuPath: menuPath}, &reg)
	return reg, err
}

// Unregister forgets desktopID and reports whether it was registered.
func (c *Client) Unregister(ctx context.Context, desktopID string) (bool, error) {
	var reply Unregistration
	err := c.Do(ctx, protocol.Request{Command: protocol.CommandUnregister, DesktopID: desktopID}, &reply)
	return reply.Removed, err
}

// Actions lists the exported action collection.
func (c *Client) Actions(ctx context.Context) ([]action.Descriptor, error) {
	var out []action.Descriptor
	err := c.Do(ctx, protocol.Request{Command: protocol.CommandActions}, &out)
	return out, err
}

// Activate activates an exported action. A nil parameter activates without one.
func (c *Client) Activate(ctx context.Context, name string, parameter *bool) error {
	return c.Do(ctx, protocol.Request{Command: protocol.CommandActivate, Action: name, Parameter: parameter}, nil)
}

// Menu fetches the current menu.
func (c *Client) Menu(ctx context.Context) (MenuReply, error) {
	var reply MenuReply
	err := c.Do(ctx, protocol.Request{Command: protocol.CommandMenu}, &reply)
	return reply, err
}

// RemoveAll dismisses every source and message.
func (c *Client) RemoveAll(ctx context.Context) error {
	return c.Do(ctx, protocol.Request{Command: protocol.CommandRemoveAll}, nil)
}

// MessageAction triggers a quick action of a message.
func (c *Client) MessageAction(ctx context.Context, desktopID, messageID, actionID string, params []any) error {
	return c.Do(ctx, protocol.Request{
		Command:   protocol.CommandMessageAction,
		DesktopID: desktopID,
		MessageID: messageID,
		ActionID:  actionID,
		Params:    params,
	}, nil)
}
