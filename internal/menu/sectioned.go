package menu

// Sectioned renders one section per application holding that application's
// sources followed by its messages. A section exists only while its
// application has at least one row, and sections follow registration order.
type Sectioned struct {
	tracker
}

// NewSectioned returns an empty per-application projection.
func NewSectioned() *Sectioned {
	s := &Sectioned{}
	s.tracker = newTracker(s)
	return s
}

// sectionPosition counts the visible sections of applications registered before appID.
func (s *Sectioned) sectionPosition(appID string) int {
	n := 0
	for _, id := range s.order {
		if id == appID {
			break
		}
		if s.apps[id].size() > 0 {
			n++
		}
	}
	return n
}

func (s *Sectioned) place(g *appGroup, pos int, item Item) {
	if g.size() == 1 {
		s.model.InsertSection(s.sectionPosition(g.id), Section{
			ID:    g.id,
			Label: g.info.Name,
			Icon:  g.info.Icon,
			Items: []Item{item},
		})
		return
	}
	s.model.InsertItem(g.id, pos, item)
}

func (s *Sectioned) unplace(g *appGroup, pos int) {
	if g.size() == 0 {
		s.model.RemoveSection(g.id)
		return
	}
	s.model.RemoveItem(g.id, pos)
}

func (s *Sectioned) replace(g *appGroup, pos int, item Item) {
	s.model.ReplaceItem(g.id, pos, item)
}
