package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/example/msgmenu/internal/codec"
	"github.com/example/msgmenu/internal/config"
	"github.com/example/msgmenu/internal/desktop"
	"github.com/example/msgmenu/internal/ipc"
	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/mainloop"
	"github.com/example/msgmenu/internal/menu"
	"github.com/example/msgmenu/internal/protocol"
	"github.com/example/msgmenu/internal/registry"
	"github.com/example/msgmenu/internal/rpc"
	"github.com/example/msgmenu/internal/security"
	"github.com/example/msgmenu/internal/store"
)

const requestTimeout = 30 * time.Second

// Options wires a Service. Zero values select no tray and no token.
type Options struct {
	Endpoint  ipc.Endpoint
	Token     string
	Variant   string
	Tray      bool
	Store     store.StringSet
	Resolver  registry.InfoResolver
	Connector protocol.Connector
}

// Service coordinates the indicator process.
type Service struct {
	endpoint ipc.Endpoint
	token    string
	variant  string
	store    store.StringSet

	loop       *mainloop.Loop
	reg        *registry.Registry
	projection menu.Projection
	runner     *menu.Runner

	flushPending bool
	ready        chan struct{}
}

// New constructs a Service from explicit collaborators.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: no registration store")
	}
	if opts.Resolver == nil {
		return nil, errors.New("service: no application resolver")
	}
	if opts.Connector == nil {
		opts.Connector = rpc.Dialer{}
	}
	if opts.Endpoint.Address == "" {
		opts.Endpoint = ipc.DefaultEndpoint()
	}

	s := &Service{
		endpoint: opts.Endpoint,
		token:    opts.Token,
		variant:  opts.Variant,
		store:    opts.Store,
		loop:     mainloop.New(),
		ready:    make(chan struct{}),
	}
	s.reg = registry.New(opts.Resolver, opts.Connector, s.loop)

	switch opts.Variant {
	case config.VariantFlat:
		s.projection = menu.NewFlat()
	case config.VariantSectioned, "":
		s.variant = config.VariantSectioned
		s.projection = menu.NewSectioned()
	default:
		return nil, fmt.Errorf("service: unknown menu variant %q", opts.Variant)
	}
	menu.Bind(s.reg, s.projection)

	if opts.Tray {
		s.runner = menu.NewRunner(func(name string) {
			s.loop.Post(func() { s.reg.Actions().Activate(name, nil) })
		})
		s.projection.Model().Subscribe(func(menu.Change) { s.scheduleFlush() })
	}
	return s, nil
}

// NewFromConfig opens the configured store and builds a Service around it.
func NewFromConfig(cfg *config.Config) (*Service, error) {
	st, err := store.Open(store.Options{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Passphrase: cfg.Store.Passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("open registration store: %w", err)
	}
	srv, err := New(Options{
		Endpoint: cfg.Endpoint(),
		Token:    security.ResolveServiceToken(cfg.Token, config.Secret()),
		Variant:  cfg.Menu.Variant,
		Tray:     cfg.Menu.Tray,
		Store:    st,
		Resolver: desktop.NewFinder(cfg.Desktop.Dirs),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return srv, nil
}

// Endpoint exposes the listening endpoint for logging and diagnostics.
func (s *Service) Endpoint() string {
	return s.endpoint.String()
}

// Ready is closed once the socket is accepting requests.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Run starts the loop and the listener and serves requests until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	listener, err := s.endpoint.Listen()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.endpoint.String(), err)
	}
	defer listener.Close()
	defer s.store.Close()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		_ = s.loop.Run(loopCtx)
		close(loopDone)
	}()
	defer func() {
		_ = s.loop.Call(context.Background(), func() error {
			s.reg.Close()
			return nil
		})
		stopLoop()
		<-loopDone
	}()

	if s.token == "" {
		log.Printf("service: no service token configured; relying on socket permissions")
	}
	s.restore(ctx)

	if s.runner != nil {
		go func() {
			if err := s.runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("service: tray exited: %v", err)
			}
		}()
		s.loop.Post(s.flush)
	}

	log.Printf("msgmenu service listening on %s (%s menu)", s.endpoint.String(), s.variant)
	close(s.ready)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Println("msgmenu service shutting down")
				return context.Canceled
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("temporary accept error: %v", err)
				time.Sleep(250 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept connection: %w", err)
		}

		go s.handleConnection(ctx, conn)
	}
}

// restore offers every persisted application again, without a remote.
func (s *Service) restore(ctx context.Context) {
	ids, err := s.store.List(ctx)
	if err != nil {
		log.Printf("service: unable to read registrations: %v", err)
		return
	}
	for _, id := range ids {
		err := s.loop.Call(ctx, func() error {
			_, err := s.reg.Add(id)
			return err
		})
		if err != nil {
			log.Printf("service: skipping stored registration %s: %v", id, err)
		}
	}
	logging.Debugf("service: restored %d stored registrations", len(ids))
}

// scheduleFlush coalesces every model change of one loop turn into a
// single tray update. It runs on the loop.
func (s *Service) scheduleFlush() {
	if s.flushPending {
		return
	}
	s.flushPending = true
	s.loop.Post(s.flush)
}

func (s *Service) flush() {
	s.flushPending = false
	if s.runner != nil {
		s.runner.Update(s.projection.Model().Snapshot(), s.reg.DrawsAttention())
	}
}

func (s *Service) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(requestTimeout))
	}

	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)

	var req protocol.Request
	if err := decoder.Decode(&req); err != nil {
		log.Printf("service: failed to decode request: %v", err)
		return
	}

	if !security.Authorize(s.token, req.Token) {
		logging.Debugf("service: rejected %s with token %s", req.Command, logging.MaskIdentifier(req.Token))
		_ = encoder.Encode(protocol.Response{Error: "unauthorized"})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data, err := s.dispatch(reqCtx, req)
	resp := protocol.Response{OK: err == nil}
	if err != nil {
		resp.Error = err.Error()
	} else if data != nil {
		raw, err := codec.Marshal(data)
		if err != nil {
			resp = protocol.Response{Error: fmt.Sprintf("encode reply: %v", err)}
		} else {
			resp.Data = raw
		}
	}
	if err := encoder.Encode(resp); err != nil {
		logging.Debugf("service: failed to write %s reply: %v", req.Command, err)
	}
}
