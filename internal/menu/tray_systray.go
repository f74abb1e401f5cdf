//go:build cgo || windows
// +build cgo windows

package menu

import (
	"context"
	"sync"

	"github.com/getlantern/systray"

	"github.com/example/msgmenu/internal/logging"
)

const attentionMarker = "●"

type systrayController struct {
	activate func(string)

	mu      sync.Mutex
	entries []trayEntry
}

type trayEntry struct {
	item   *systray.MenuItem
	cancel context.CancelFunc
}

func newTrayController(activate func(string)) trayController {
	return &systrayController{activate: activate}
}

func (c *systrayController) Run(ctx context.Context, updates <-chan UpdatePayload) error {
	done := make(chan struct{})

	go systray.Run(func() {
		setTrayIcon(iconFor(false), false)
		systray.SetTooltip("Messaging menu")

		quit := systray.AddMenuItem("Quit", "Stop the messaging menu")
		go func() {
			for {
				select {
				case <-ctx.Done():
					systray.Quit()
					return
				case <-quit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
		systray.AddSeparator()

		go c.listen(ctx, updates)
	}, func() {
		c.shutdown()
		close(done)
	})

	select {
	case <-ctx.Done():
		systray.Quit()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *systrayController) listen(ctx context.Context, updates <-chan UpdatePayload) {
	for {
		select {
		case <-ctx.Done():
			systray.Quit()
			return
		case payload, ok := <-updates:
			if !ok {
				systray.Quit()
				return
			}
			c.render(ctx, payload)
		}
	}
}

func (c *systrayController) render(ctx context.Context, payload UpdatePayload) {
	c.mu.Lock()
	old := c.entries
	c.entries = nil
	c.mu.Unlock()

	for _, entry := range old {
		entry.cancel()
		if entry.item != nil {
			entry.item.Hide()
		}
	}

	if len(payload.Icon) > 0 {
		setTrayIcon(payload.Icon, payload.Attention)
	}
	if payload.Attention {
		systray.SetTitle(attentionMarker)
	} else {
		systray.SetTitle("")
	}

	entries := make([]trayEntry, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		entries = append(entries, c.addRow(ctx, row))
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// addRow adds one row. Separators are disabled items because systray
// separators cannot be hidden again.
func (c *systrayController) addRow(ctx context.Context, row Row) trayEntry {
	switch {
	case row.Separator:
		mi := systray.AddMenuItem("────────", "")
		mi.Disable()
		return trayEntry{item: mi, cancel: func() {}}
	case row.Header || row.Target == "":
		mi := systray.AddMenuItem(row.Label, row.Tooltip)
		mi.Disable()
		return trayEntry{item: mi, cancel: func() {}}
	default:
		label := row.Label
		if row.Attention {
			label = attentionMarker + " " + label
		}
		mi := systray.AddMenuItem(label, row.Tooltip)
		ctxItem, cancel := context.WithCancel(ctx)
		go func(ch <-chan struct{}, name string) {
			for {
				select {
				case <-ctxItem.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					logging.Debugf("tray: activating %s", name)
					if c.activate != nil {
						c.activate(name)
					}
				}
			}
		}(mi.ClickedCh, ActionName(row.Target))
		return trayEntry{item: mi, cancel: cancel}
	}
}

func (c *systrayController) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		entry.cancel()
	}
	c.entries = nil
}
