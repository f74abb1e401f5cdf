package menu

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/example/msgmenu/internal/logging"
)

const defaultRefreshInterval = 30 * time.Second

type trayController interface {
	Run(ctx context.Context, updates <-chan UpdatePayload) error
}

// UpdatePayload is one complete tray state.
type UpdatePayload struct {
	Rows      []Row
	Attention bool
	Icon      []byte
}

// Runner mirrors menu snapshots into the system tray. Snapshots are handed
// over from the main loop with Update; rendering happens on the runner's own
// goroutine and is repeated on a ticker so relative time labels stay fresh.
type Runner struct {
	refreshInterval time.Duration
	now             func() time.Time

	mu         sync.RWMutex
	sections   []Section
	attention  bool
	lastDigest string

	tray            trayController
	updates         chan UpdatePayload
	refreshRequests chan struct{}
}

// NewRunner constructs a Runner. activate receives the exported action name
// of every clicked item and is called from tray goroutines.
func NewRunner(activate func(name string)) *Runner {
	r := &Runner{
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
		refreshRequests: make(chan struct{}, 1),
		updates:         make(chan UpdatePayload, 1),
	}
	r.tray = newTrayController(activate)
	return r
}

// Update records the latest menu snapshot and schedules a render.
func (r *Runner) Update(sections []Section, attention bool) {
	r.mu.Lock()
	r.sections = sections
	r.attention = attention
	r.mu.Unlock()
	r.requestRefresh()
}

// Start renders the tray until ctx is cancelled or the tray exits.
func (r *Runner) Start(ctx context.Context) error {
	logging.Debugf("tray runner initialising with refresh interval %s", r.refreshInterval)

	var trayErr <-chan error
	if r.tray != nil {
		ch := make(chan error, 1)
		trayErr = ch
		go func() {
			ch <- r.tray.Run(ctx, r.updates)
		}()
	} else {
		log.Printf("tray: no system tray available; menu is only reachable over the service socket")
	}

	r.render()

	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.render()
		case <-r.refreshRequests:
			r.render()
		case err := <-trayErr:
			return err
		}
	}
}

// Latest returns the most recent snapshot.
func (r *Runner) Latest() ([]Section, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Section(nil), r.sections...), r.attention
}

func (r *Runner) render() {
	sections, attention := r.Latest()
	rows := Rows(sections, r.now())
	digest := hashRows(rows, attention)

	r.mu.Lock()
	if digest != "" && digest == r.lastDigest {
		r.mu.Unlock()
		return
	}
	r.lastDigest = digest
	r.mu.Unlock()

	logging.Debugf("tray: publishing %d rows (attention=%t digest=%s)", len(rows), attention, digest)
	r.publish(UpdatePayload{Rows: rows, Attention: attention, Icon: iconFor(attention)})
}

func (r *Runner) requestRefresh() {
	select {
	case r.refreshRequests <- struct{}{}:
	default:
	}
}

// publish replaces any payload the tray has not consumed yet.
func (r *Runner) publish(update UpdatePayload) {
	select {
	case r.updates <- update:
	default:
		select {
		case <-r.updates:
		default:
		}
		select {
		case r.updates <- update:
		default:
		}
	}
}

func hashRows(rows []Row, attention bool) string {
	payload, err := json.Marshal(struct {
		Rows      []Row
		Attention bool
	}{rows, attention})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
