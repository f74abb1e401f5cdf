package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/msgmenu/internal/action"
	"github.com/example/msgmenu/internal/menu"
	"github.com/example/msgmenu/internal/protocol"
	"github.com/example/msgmenu/internal/registry"
)

// ErrUnknownAction is reported when activating a name the muxer does not export.
var ErrUnknownAction = errors.New("unknown action")

// Registration is the reply to a register request.
type Registration struct {
	ID        string `cbor:"id"`
	DesktopID string `cbor:"desktop_id"`
	Name      string `cbor:"name"`
	Icon      string `cbor:"icon,omitempty"`
	Endpoint  string `cbor:"endpoint,omitempty"`
}

// Unregistration is the reply to an unregister request.
type Unregistration struct {
	Removed bool `cbor:"removed"`
}

// MenuReply is the reply to a menu request.
type MenuReply struct {
	Variant        string         `cbor:"variant"`
	Sections       []menu.Section `cbor:"sections"`
	DrawsAttention bool           `cbor:"draws_attention"`
}

func (s *Service) dispatch(ctx context.Context, req protocol.Request) (any, error) {
	switch req.Command {
	case protocol.CommandRegister:
		return s.register(ctx, req.DesktopID, req.MenuPath)
	case protocol.CommandUnregister:
		return s.unregister(ctx, req.DesktopID)
	case protocol.CommandActions:
		return s.listActions(ctx)
	case protocol.CommandActivate:
		return nil, s.activate(ctx, req.Action, req.Parameter)
	case protocol.CommandMenu:
		return s.menu(ctx)
	case protocol.CommandRemoveAll:
		return nil, s.loop.Call(ctx, func() error {
			s.reg.RemoveAll()
			return nil
		})
	case protocol.CommandMessageAction:
		return nil, s.loop.Call(ctx, func() error {
			return s.reg.ActivateMessageAction(req.DesktopID, req.MessageID, req.ActionID, req.Params)
		})
	default:
		return nil, fmt.Errorf("unknown command: %s", req.Command)
	}
}

// register adds the application, attaches its endpoint and persists its id.
// A store failure is logged; the application stays registered for this run.
func (s *Service) register(ctx context.Context, desktopID, menuPath string) (*Registration, error) {
	var reply Registration
	err := s.loop.Call(ctx, func() error {
		app, err := s.reg.Add(desktopID)
		if err != nil {
			return err
		}
		if menuPath != "" {
			if err := s.reg.AttachRemote(app.ID, menuPath); err != nil {
				return err
			}
		}
		reply = Registration{
			ID:        app.ID,
			DesktopID: app.DesktopID,
			Name:      app.Info.Name,
			Icon:      app.Info.Icon,
			Endpoint:  app.Endpoint(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	key := registry.DesktopFileName(reply.DesktopID)
	if added, err := s.store.Add(ctx, key); err != nil {
		log.Printf("service: unable to persist registration of %s: %v", key, err)
	} else if added {
		log.Printf("service: registered new application %s", reply.ID)
	}
	return &reply, nil
}

func (s *Service) unregister(ctx context.Context, desktopID string) (*Unregistration, error) {
	var reply Unregistration
	key := registry.DesktopFileName(desktopID)
	err := s.loop.Call(ctx, func() error {
		if app, ok := s.reg.Lookup(desktopID); ok {
			key = registry.DesktopFileName(app.DesktopID)
		}
		reply.Removed = s.reg.Remove(desktopID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Remove(ctx, key); err != nil {
		log.Printf("service: unable to forget registration of %s: %v", key, err)
	}
	return &reply, nil
}

func (s *Service) listActions(ctx context.Context) ([]action.Descriptor, error) {
	var out []action.Descriptor
	err := s.loop.Call(ctx, func() error {
		mux := s.reg.Actions()
		for _, name := range mux.List() {
			if desc, ok := mux.Describe(name); ok {
				out = append(out, desc)
			}
		}
		return nil
	})
	return out, err
}

func (s *Service) activate(ctx context.Context, name string, parameter *bool) error {
	return s.loop.Call(ctx, func() error {
		mux := s.reg.Actions()
		if _, ok := mux.Describe(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAction, name)
		}
		var param any
		if parameter != nil {
			param = *parameter
		}
		mux.Activate(name, param)
		return nil
	})
}

func (s *Service) menu(ctx context.Context) (*MenuReply, error) {
	var reply MenuReply
	err := s.loop.Call(ctx, func() error {
		reply = MenuReply{
			Variant:        s.variant,
			Sections:       s.projection.Model().Snapshot(),
			DrawsAttention: s.reg.DrawsAttention(),
		}
		return nil
	})
	return &reply, err
}
