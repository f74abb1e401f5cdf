package menu

import "github.com/example/msgmenu/internal/registry"

// Section ids used by the flat projection.
const (
	FlatSectionMessages = "messages"
	FlatSectionClear    = "clear"
)

// Flat renders every application's rows in a single section, concatenated
// in registration order, followed by a section holding the "Clear All"
// command. Both sections exist only while there is at least one row.
type Flat struct {
	tracker
}

// NewFlat returns an empty flat projection.
func NewFlat() *Flat {
	f := &Flat{}
	f.tracker = newTracker(f)
	return f
}

func clearSection() Section {
	return Section{
		ID: FlatSectionClear,
		Items: []Item{{
			ID:     "clear-all",
			Kind:   ItemCommand,
			Label:  "Clear All",
			Target: TargetPrefix + registry.ActionRemoveAll,
		}},
	}
}

func (f *Flat) place(g *appGroup, pos int, item Item) {
	if f.total() == 1 {
		f.model.InsertSection(0, Section{ID: FlatSectionMessages, Items: []Item{item}})
		f.model.InsertSection(1, clearSection())
		return
	}
	f.model.InsertItem(FlatSectionMessages, f.offset(g.id)+pos, item)
}

func (f *Flat) unplace(g *appGroup, pos int) {
	if f.total() == 0 {
		f.model.RemoveSection(FlatSectionClear)
		f.model.RemoveSection(FlatSectionMessages)
		return
	}
	f.model.RemoveItem(FlatSectionMessages, f.offset(g.id)+pos)
}

func (f *Flat) replace(g *appGroup, pos int, item Item) {
	f.model.ReplaceItem(FlatSectionMessages, f.offset(g.id)+pos, item)
}
