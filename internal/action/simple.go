package action

// Action is one entry of a SimpleGroup.
type Action struct {
	Name          string
	ParameterType string
	Enabled       bool
	State         any

	// OnActivate runs when the action is activated. Nil means activation is ignored.
	OnActivate func(param any)
	// OnChangeState runs when a state change is requested. Nil means the
	// requested value is stored as the new state.
	OnChangeState func(value any)
}

// SimpleGroup is an insertion-ordered Group backed by a map.
type SimpleGroup struct {
	actions   map[string]*Action
	order     []string
	observers observerList
}

// NewSimpleGroup returns an empty group.
func NewSimpleGroup() *SimpleGroup {
	return &SimpleGroup{actions: make(map[string]*Action)}
}

var _ Group = (*SimpleGroup)(nil)

// Add inserts an action. An existing action with the same name is removed
// first, so observers see removed then added.
func (g *SimpleGroup) Add(a Action) {
	if _, exists := g.actions[a.Name]; exists {
		g.Remove(a.Name)
	}
	stored := a
	g.actions[a.Name] = &stored
	g.order = append(g.order, a.Name)
	g.observers.emit(Event{Type: EventAdded, Name: a.Name, Enabled: a.Enabled, State: a.State})
}

// Remove deletes an action and reports whether it existed.
func (g *SimpleGroup) Remove(name string) bool {
	if _, exists := g.actions[name]; !exists {
		return false
	}
	delete(g.actions, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	g.observers.emit(Event{Type: EventRemoved, Name: name})
	return true
}

// Clear removes every action, oldest first, and returns the removed names.
func (g *SimpleGroup) Clear() []string {
	names := g.List()
	for _, name := range names {
		g.Remove(name)
	}
	return names
}

// Has reports whether the named action exists.
func (g *SimpleGroup) Has(name string) bool {
	_, ok := g.actions[name]
	return ok
}

// Len returns the number of actions.
func (g *SimpleGroup) Len() int {
	return len(g.order)
}

// SetState replaces the state of an existing action.
func (g *SimpleGroup) SetState(name string, state any) bool {
	a, ok := g.actions[name]
	if !ok {
		return false
	}
	a.State = state
	g.observers.emit(Event{Type: EventStateChanged, Name: name, Enabled: a.Enabled, State: state})
	return true
}

// SetEnabled toggles an existing action.
func (g *SimpleGroup) SetEnabled(name string, enabled bool) bool {
	a, ok := g.actions[name]
	if !ok {
		return false
	}
	if a.Enabled == enabled {
		return true
	}
	a.Enabled = enabled
	g.observers.emit(Event{Type: EventEnabledChanged, Name: name, Enabled: enabled, State: a.State})
	return true
}

// List returns action names in insertion order.
func (g *SimpleGroup) List() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Describe returns the descriptor of the named action.
func (g *SimpleGroup) Describe(name string) (Descriptor, bool) {
	a, ok := g.actions[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Name: a.Name, ParameterType: a.ParameterType, Enabled: a.Enabled, State: a.State}, true
}

// Activate invokes the action's handler. Unknown or disabled actions are ignored.
func (g *SimpleGroup) Activate(name string, param any) {
	a, ok := g.actions[name]
	if !ok || !a.Enabled || a.OnActivate == nil {
		return
	}
	a.OnActivate(param)
}

// ChangeState requests a state change on the named action.
func (g *SimpleGroup) ChangeState(name string, value any) {
	a, ok := g.actions[name]
	if !ok {
		return
	}
	if a.OnChangeState != nil {
		a.OnChangeState(value)
		return
	}
	g.SetState(name, value)
}

// Subscribe registers an observer and returns a function that removes it.
func (g *SimpleGroup) Subscribe(obs Observer) func() {
	return g.observers.add(obs)
}
