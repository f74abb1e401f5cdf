package menu

import (
	"github.com/example/msgmenu/internal/protocol"
	"github.com/example/msgmenu/internal/registry"
)

// Projection keeps a Model in step with registry lifecycle events.
type Projection interface {
	Handle(ev registry.Event)
	Model() *Model
}

// Bind replays the registry's current state into p and subscribes it to
// further events. The returned function unsubscribes.
func Bind(reg *registry.Registry, p Projection) func() {
	for _, app := range reg.Applications() {
		p.Handle(registry.Event{Type: registry.EventAppAdded, AppID: app.ID, Info: app.Info})
		for _, src := range app.Sources() {
			p.Handle(registry.Event{Type: registry.EventSourceAdded, AppID: app.ID, ID: src.ID, Source: src})
		}
		for _, msg := range app.Messages() {
			p.Handle(registry.Event{Type: registry.EventMessageAdded, AppID: app.ID, ID: msg.ID, Message: msg})
		}
	}
	return reg.Subscribe(p.Handle)
}

// SourceTarget returns the menu target of a source action.
func SourceTarget(appID, sourceID string) string {
	return TargetPrefix + appID + ".src." + sourceID
}

// MessageTarget returns the menu target of a message action.
func MessageTarget(appID, messageID string) string {
	return TargetPrefix + appID + ".msg." + messageID
}

func sourceItem(appID string, rec protocol.SourceRecord) Item {
	label := rec.Label
	if label == "" {
		label = rec.ID
	}
	return Item{
		ID:             appID + "/src/" + rec.ID,
		Kind:           ItemSource,
		AppID:          appID,
		Label:          label,
		Icon:           rec.Icon,
		Target:         SourceTarget(appID, rec.ID),
		Count:          rec.Count,
		Time:           rec.Time,
		Detail:         rec.Extra,
		DrawsAttention: rec.DrawsAttention,
	}
}

func messageItem(appID string, rec protocol.MessageRecord) Item {
	detail := rec.Subtitle
	if detail == "" {
		detail = rec.Body
	}
	label := rec.Title
	if label == "" {
		label = rec.ID
	}
	return Item{
		ID:             appID + "/msg/" + rec.ID,
		Kind:           ItemMessage,
		AppID:          appID,
		Label:          label,
		Icon:           rec.Icon,
		Target:         MessageTarget(appID, rec.ID),
		Time:           rec.Time,
		Detail:         detail,
		DrawsAttention: rec.DrawsAttention,
		Actions:        rec.Actions,
	}
}

// appGroup holds one application's rows, newest first within each kind.
// Its combined position space is sources followed by messages.
type appGroup struct {
	id       string
	info     registry.AppInfo
	sources  []Item
	messages []Item
}

func (g *appGroup) size() int {
	return len(g.sources) + len(g.messages)
}

func indexOf(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// layout maps group-relative edits onto the model. Each hook runs after the
// group's slices were updated.
type layout interface {
	place(g *appGroup, pos int, item Item)
	unplace(g *appGroup, pos int)
	replace(g *appGroup, pos int, item Item)
}

// tracker is the bookkeeping shared by every projection.
type tracker struct {
	model  *Model
	layout layout
	apps   map[string]*appGroup
	order  []string
}

func newTracker(l layout) tracker {
	return tracker{model: NewModel(), layout: l, apps: make(map[string]*appGroup)}
}

// Model returns the maintained model.
func (t *tracker) Model() *Model {
	return t.model
}

func (t *tracker) group(appID string) *appGroup {
	g, ok := t.apps[appID]
	if !ok {
		g = &appGroup{id: appID, info: registry.AppInfo{Name: appID}}
		t.apps[appID] = g
		t.order = append(t.order, appID)
	}
	return g
}

// offset is the number of rows of every group registered before appID.
func (t *tracker) offset(appID string) int {
	n := 0
	for _, id := range t.order {
		if id == appID {
			break
		}
		n += t.apps[id].size()
	}
	return n
}

func (t *tracker) total() int {
	n := 0
	for _, g := range t.apps {
		n += g.size()
	}
	return n
}

// Handle applies one registry event.
func (t *tracker) Handle(ev registry.Event) {
	switch ev.Type {
	case registry.EventAppAdded:
		g := t.group(ev.AppID)
		if ev.Info.Name != "" {
			g.info = ev.Info
		}
	case registry.EventAppRemoved:
		if g, ok := t.apps[ev.AppID]; ok {
			t.clear(g)
			delete(t.apps, ev.AppID)
			for i, id := range t.order {
				if id == ev.AppID {
					t.order = append(t.order[:i:i], t.order[i+1:]...)
					break
				}
			}
		}
	case registry.EventAppStopped:
		if g, ok := t.apps[ev.AppID]; ok {
			t.clear(g)
		}
	case registry.EventRemoveAll:
		for _, id := range t.order {
			t.clear(t.apps[id])
		}
	case registry.EventSourceAdded, registry.EventSourceChanged:
		t.upsert(t.group(ev.AppID), true, sourceItem(ev.AppID, ev.Source))
	case registry.EventSourceRemoved:
		t.remove(t.group(ev.AppID), true, ev.AppID+"/src/"+ev.ID)
	case registry.EventMessageAdded:
		g := t.group(ev.AppID)
		item := messageItem(ev.AppID, ev.Message)
		t.remove(g, false, item.ID)
		t.upsert(g, false, item)
	case registry.EventMessageRemoved:
		t.remove(t.group(ev.AppID), false, ev.AppID+"/msg/"+ev.ID)
	}
}

func (t *tracker) upsert(g *appGroup, isSource bool, item Item) {
	if isSource {
		if idx := indexOf(g.sources, item.ID); idx >= 0 {
			g.sources[idx] = item
			t.layout.replace(g, idx, item)
			return
		}
		g.sources = append([]Item{item}, g.sources...)
		t.layout.place(g, 0, item)
		return
	}
	g.messages = append([]Item{item}, g.messages...)
	t.layout.place(g, len(g.sources), item)
}

func (t *tracker) remove(g *appGroup, isSource bool, itemID string) {
	if isSource {
		idx := indexOf(g.sources, itemID)
		if idx < 0 {
			return
		}
		g.sources = append(g.sources[:idx:idx], g.sources[idx+1:]...)
		t.layout.unplace(g, idx)
		return
	}
	idx := indexOf(g.messages, itemID)
	if idx < 0 {
		return
	}
	g.messages = append(g.messages[:idx:idx], g.messages[idx+1:]...)
	t.layout.unplace(g, len(g.sources)+idx)
}

func (t *tracker) clear(g *appGroup) {
	for len(g.messages) > 0 {
		t.remove(g, false, g.messages[len(g.messages)-1].ID)
	}
	for len(g.sources) > 0 {
		t.remove(g, true, g.sources[len(g.sources)-1].ID)
	}
}
