package registry

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/protocol"
)

// AttachRemote connects the application registered under id to endpoint.
// Any previous remote is torn down first; replacing a living connection is
// logged as a warning since it usually means the old process has not yet
// exited when the new one registered.
func (r *Registry) AttachRemote(id, endpoint string) error {
	app, ok := r.apps[CanonicalID(id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	if app.session != nil {
		if app.session.channel != nil {
			logging.Warnf("registry: replacing application %s that already had a living connection", app.ID)
		}
		r.detach(app, "remote replaced")
	}

	ctx, cancel := context.WithCancel(r.ctx)
	s := &session{
		generation: uuid.NewString(),
		endpoint:   endpoint,
		ctx:        ctx,
		cancel:     cancel,
	}
	app.session = s
	app.active = true
	logging.Debugf("registry: %s connecting to %s (generation %s)", app.ID, endpoint, s.generation)

	appID, generation := app.ID, s.generation
	go func() {
		ch, err := r.connector.Connect(ctx, endpoint)
		r.dispatch.Post(func() {
			app, s, ok := r.current(appID, generation)
			if !ok {
				if ch != nil {
					_ = ch.Close()
				}
				return
			}
			if err != nil {
				log.Printf("registry: %s: connect to %s failed: %v", appID, endpoint, err)
				r.detach(app, "connect failed")
				return
			}
			r.connected(app, s, ch)
		})
	}()
	return nil
}

// current resolves the application and session a completion was issued
// under. Completions of replaced, cancelled or removed sessions resolve to false.
func (r *Registry) current(appID, generation string) (*Application, *session, bool) {
	app, ok := r.apps[appID]
	if !ok || app.session == nil {
		return nil, nil, false
	}
	s := app.session
	if s.generation != generation || s.ctx.Err() != nil {
		return nil, nil, false
	}
	return app, s, true
}

// deliver posts fn to the main loop, running it only if the session is still current.
func (r *Registry) deliver(appID, generation string, fn func(*Application, *session)) {
	r.dispatch.Post(func() {
		if app, s, ok := r.current(appID, generation); ok {
			fn(app, s)
		}
	})
}

func (r *Registry) connected(app *Application, s *session, ch protocol.Channel) {
	s.channel = ch
	logging.Debugf("registry: %s connected, listing sources and messages", app.ID)

	appID, generation, ctx := app.ID, s.generation, s.ctx
	go func() {
		records, err := ch.ListSources(ctx)
		r.deliver(appID, generation, func(app *Application, s *session) {
			r.applySourceListing(app, s, records, err)
		})
	}()
	go func() {
		records, err := ch.ListMessages(ctx)
		r.deliver(appID, generation, func(app *Application, s *session) {
			r.applyMessageListing(app, s, records, err)
		})
	}()
	go r.pump(ctx, appID, generation, ch)
}

// pump forwards pushes to the main loop in receipt order and reports the
// loss of the connection.
func (r *Registry) pump(ctx context.Context, appID, generation string, ch protocol.Channel) {
	pushes := ch.Pushes()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-pushes:
			if !ok {
				r.lost(appID, generation)
				return
			}
			r.deliver(appID, generation, func(app *Application, s *session) {
				r.handlePush(app, s, p)
			})
		case <-ch.Done():
			r.lost(appID, generation)
			return
		}
	}
}

func (r *Registry) lost(appID, generation string) {
	r.deliver(appID, generation, func(app *Application, _ *session) {
		log.Printf("registry: %s: remote connection lost", app.ID)
		r.detach(app, "peer vanished")
	})
}

func (r *Registry) applySourceListing(app *Application, s *session, records []protocol.SourceRecord, err error) {
	if err != nil {
		log.Printf("registry: %s: listing sources failed: %v", app.ID, err)
	} else {
		r.clearSources(app)
		for _, rec := range records {
			if rec.ID == "" {
				log.Printf("registry: %s: dropping source without id", app.ID)
				continue
			}
			r.upsertSource(app, rec)
		}
		logging.Debugf("registry: %s: listed %d sources", app.ID, len(records))
	}
	s.sourcesListed = true
	pending := s.pendingSources
	s.pendingSources = nil
	for _, p := range pending {
		r.applyPush(app, p)
	}
	r.reportSynced(app, s)
}

func (r *Registry) applyMessageListing(app *Application, s *session, records []protocol.MessageRecord, err error) {
	if err != nil {
		log.Printf("registry: %s: listing messages failed: %v", app.ID, err)
	} else {
		r.clearMessages(app)
		for _, rec := range records {
			if rec.ID == "" {
				log.Printf("registry: %s: dropping message without id", app.ID)
				continue
			}
			r.upsertMessage(app, rec)
		}
		logging.Debugf("registry: %s: listed %d messages", app.ID, len(records))
	}
	s.messagesListed = true
	pending := s.pendingMessages
	s.pendingMessages = nil
	for _, p := range pending {
		r.applyPush(app, p)
	}
	r.reportSynced(app, s)
}

func (r *Registry) reportSynced(app *Application, s *session) {
	if s.synced() {
		logging.Debugf("registry: %s synced", app.ID)
	}
}

// handlePush applies a push, holding it back until the listing of its kind
// has been applied so the listing cannot overwrite newer state.
func (r *Registry) handlePush(app *Application, s *session, p protocol.Push) {
	switch p.Name {
	case protocol.PushSourceAdded, protocol.PushSourceChanged, protocol.PushSourceRemoved:
		if !s.sourcesListed {
			s.pendingSources = append(s.pendingSources, p)
			return
		}
	case protocol.PushMessageAdded, protocol.PushMessageRemoved:
		if !s.messagesListed {
			s.pendingMessages = append(s.pendingMessages, p)
			return
		}
	default:
		log.Printf("registry: %s: ignoring unknown push %q", app.ID, p.Name)
		return
	}
	r.applyPush(app, p)
}

func (r *Registry) applyPush(app *Application, p protocol.Push) {
	switch p.Name {
	case protocol.PushSourceAdded, protocol.PushSourceChanged:
		if p.Source.ID == "" {
			log.Printf("registry: %s: dropping %s without id", app.ID, p.Name)
			return
		}
		r.upsertSource(app, p.Source)
	case protocol.PushSourceRemoved:
		r.removeSource(app, p.ID)
	case protocol.PushMessageAdded:
		if p.Message.ID == "" {
			log.Printf("registry: %s: dropping %s without id", app.ID, p.Name)
			return
		}
		r.upsertMessage(app, p.Message)
	case protocol.PushMessageRemoved:
		r.removeMessage(app, p.ID)
	}
}

// detach cancels the application's session, clears its groups and emits
// app-stopped when the application had remote activity.
func (r *Registry) detach(app *Application, reason string) {
	if s := app.session; s != nil {
		s.cancel()
		if s.channel != nil {
			if err := s.channel.Close(); err != nil {
				logging.Debugf("registry: %s: closing channel: %v", app.ID, err)
			}
		}
		app.session = nil
		logging.Debugf("registry: %s detached: %s", app.ID, reason)
	}
	r.clearSources(app)
	r.clearMessages(app)
	if app.active {
		app.active = false
		r.emit(Event{Type: EventAppStopped, AppID: app.ID})
	}
}
