package menu

import "github.com/example/msgmenu/internal/protocol"

// ItemKind distinguishes menu rows.
type ItemKind string

const (
	ItemSource  ItemKind = "source"
	ItemMessage ItemKind = "message"
	ItemCommand ItemKind = "command"
)

// TargetPrefix is the group name the exported action collection is published under.
const TargetPrefix = "indicator."

// Item is one menu row.
type Item struct {
	ID             string   `cbor:"id"`
	Kind           ItemKind `cbor:"kind"`
	AppID          string   `cbor:"app_id,omitempty"`
	Label          string   `cbor:"label"`
	Icon           string   `cbor:"icon,omitempty"`
	Target         string   `cbor:"target,omitempty"`
	Count          uint32   `cbor:"count,omitempty"`
	Time           int64    `cbor:"time,omitempty"`
	Detail         string   `cbor:"detail,omitempty"`
	DrawsAttention bool     `cbor:"draws_attention,omitempty"`

	// Actions are the quick actions of a message item.
	Actions []protocol.MessageAction `cbor:"actions,omitempty"`
}

// Section is an ordered group of items rendered between separators.
type Section struct {
	ID    string `cbor:"id"`
	Label string `cbor:"label,omitempty"`
	Icon  string `cbor:"icon,omitempty"`
	Items []Item `cbor:"items"`
}

// Change describes one contiguous edit. Section is -1 for edits of the
// section list itself; otherwise it indexes the edited section.
type Change struct {
	Section  int
	Position int
	Removed  int
	Added    int
}

// Model is an ordered tree of sections and items that notifies observers of
// every edit. Like the rest of the indicator state it is owned by the main loop.
type Model struct {
	sections  []*Section
	observers []func(Change)
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Subscribe registers fn for every change.
func (m *Model) Subscribe(fn func(Change)) {
	m.observers = append(m.observers, fn)
}

func (m *Model) notify(c Change) {
	for _, fn := range m.observers {
		fn(c)
	}
}

// Len returns the number of sections.
func (m *Model) Len() int {
	return len(m.sections)
}

// Snapshot returns a deep copy of the sections.
func (m *Model) Snapshot() []Section {
	out := make([]Section, len(m.sections))
	for i, s := range m.sections {
		out[i] = Section{ID: s.ID, Label: s.Label, Icon: s.Icon, Items: append([]Item(nil), s.Items...)}
	}
	return out
}

// SectionIndex returns the position of the section with id, or -1.
func (m *Model) SectionIndex(id string) int {
	for i, s := range m.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Section returns a copy of the section with id.
func (m *Model) Section(id string) (Section, bool) {
	idx := m.SectionIndex(id)
	if idx < 0 {
		return Section{}, false
	}
	s := m.sections[idx]
	return Section{ID: s.ID, Label: s.Label, Icon: s.Icon, Items: append([]Item(nil), s.Items...)}, true
}

// InsertSection places s at position pos, clamped to the valid range.
func (m *Model) InsertSection(pos int, s Section) {
	pos = clamp(pos, len(m.sections))
	stored := &Section{ID: s.ID, Label: s.Label, Icon: s.Icon, Items: append([]Item(nil), s.Items...)}
	m.sections = append(m.sections, nil)
	copy(m.sections[pos+1:], m.sections[pos:])
	m.sections[pos] = stored
	m.notify(Change{Section: -1, Position: pos, Added: 1})
}

// RemoveSection deletes the section with id and reports whether it existed.
func (m *Model) RemoveSection(id string) bool {
	idx := m.SectionIndex(id)
	if idx < 0 {
		return false
	}
	m.sections = append(m.sections[:idx:idx], m.sections[idx+1:]...)
	m.notify(Change{Section: -1, Position: idx, Removed: 1})
	return true
}

// InsertItem places item at pos within the section with id.
func (m *Model) InsertItem(sectionID string, pos int, item Item) bool {
	idx := m.SectionIndex(sectionID)
	if idx < 0 {
		return false
	}
	s := m.sections[idx]
	pos = clamp(pos, len(s.Items))
	s.Items = append(s.Items, Item{})
	copy(s.Items[pos+1:], s.Items[pos:])
	s.Items[pos] = item
	m.notify(Change{Section: idx, Position: pos, Added: 1})
	return true
}

// RemoveItem deletes the item at pos within the section with id.
func (m *Model) RemoveItem(sectionID string, pos int) bool {
	idx := m.SectionIndex(sectionID)
	if idx < 0 {
		return false
	}
	s := m.sections[idx]
	if pos < 0 || pos >= len(s.Items) {
		return false
	}
	s.Items = append(s.Items[:pos:pos], s.Items[pos+1:]...)
	m.notify(Change{Section: idx, Position: pos, Removed: 1})
	return true
}

// ReplaceItem overwrites the item at pos within the section with id.
func (m *Model) ReplaceItem(sectionID string, pos int, item Item) bool {
	idx := m.SectionIndex(sectionID)
	if idx < 0 {
		return false
	}
	s := m.sections[idx]
	if pos < 0 || pos >= len(s.Items) {
		return false
	}
	s.Items[pos] = item
	m.notify(Change{Section: idx, Position: pos, Removed: 1, Added: 1})
	return true
}

func clamp(pos, length int) int {
	if pos < 0 {
		return 0
	}
	if pos > length {
		return length
	}
	return pos
}
