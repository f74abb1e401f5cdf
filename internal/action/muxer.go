package action

import (
	"strings"

	"github.com/example/msgmenu/internal/logging"
)

// Global is the namespace of the unprefixed delegate.
const Global = ""

// Separator joins a namespace and a local action name.
const Separator = "."

// Muxer presents several delegate groups as one flat group. Actions of a
// delegate inserted under namespace "ns" are exposed as "ns.name"; actions of
// the Global delegate keep their bare names.
//
// When the first segment of a flat name matches a namespace, the namespace
// wins over a global action spelled the same way.
type Muxer struct {
	delegates map[string]*delegate
	order     []string
	observers observerList
}

type delegate struct {
	group       Group
	unsubscribe func()
}

// NewMuxer returns an empty muxer.
func NewMuxer() *Muxer {
	return &Muxer{delegates: make(map[string]*delegate)}
}

var _ Group = (*Muxer)(nil)

// Insert places group under namespace, replacing any previous delegate.
// Observers see every name of the old delegate removed before every name of
// the new one is added.
func (m *Muxer) Insert(namespace string, group Group) error {
	if strings.Contains(namespace, Separator) {
		return ErrInvalidNamespace
	}
	if _, exists := m.delegates[namespace]; exists {
		m.Remove(namespace)
	}

	d := &delegate{group: group}
	d.unsubscribe = group.Subscribe(func(ev Event) {
		ev.Name = flatten(namespace, ev.Name)
		m.observers.emit(ev)
	})
	m.delegates[namespace] = d
	m.order = append(m.order, namespace)

	for _, name := range group.List() {
		desc, _ := group.Describe(name)
		m.observers.emit(Event{Type: EventAdded, Name: flatten(namespace, name), Enabled: desc.Enabled, State: desc.State})
	}
	return nil
}

// Remove drops the delegate under namespace, reporting every name it contributed as removed.
func (m *Muxer) Remove(namespace string) {
	d, ok := m.delegates[namespace]
	if !ok {
		return
	}
	d.unsubscribe()
	delete(m.delegates, namespace)
	for i, ns := range m.order {
		if ns == namespace {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	for _, name := range d.group.List() {
		m.observers.emit(Event{Type: EventRemoved, Name: flatten(namespace, name)})
	}
}

// Delegate returns the group inserted under namespace.
func (m *Muxer) Delegate(namespace string) (Group, bool) {
	d, ok := m.delegates[namespace]
	if !ok {
		return nil, false
	}
	return d.group, true
}

// Namespaces returns the inserted namespaces in insertion order.
func (m *Muxer) Namespaces() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Lookup splits a flat name into the namespace owning it and the delegate's
// local name. It reports false when no delegate exposes the action.
func (m *Muxer) Lookup(flat string) (namespace, local string, ok bool) {
	if idx := strings.Index(flat, Separator); idx > 0 {
		ns := flat[:idx]
		if d, exists := m.delegates[ns]; exists {
			local = flat[idx+len(Separator):]
			if _, found := d.group.Describe(local); found {
				return ns, local, true
			}
			return "", "", false
		}
	}
	if d, exists := m.delegates[Global]; exists {
		if _, found := d.group.Describe(flat); found {
			return Global, flat, true
		}
	}
	return "", "", false
}

// List returns every flat name, delegates in insertion order.
func (m *Muxer) List() []string {
	var out []string
	for _, ns := range m.order {
		for _, name := range m.delegates[ns].group.List() {
			out = append(out, flatten(ns, name))
		}
	}
	return out
}

// Describe returns the descriptor of a flat name.
func (m *Muxer) Describe(flat string) (Descriptor, bool) {
	ns, local, ok := m.Lookup(flat)
	if !ok {
		return Descriptor{}, false
	}
	desc, ok := m.delegates[ns].group.Describe(local)
	if !ok {
		return Descriptor{}, false
	}
	desc.Name = flat
	return desc, true
}

// Activate forwards to the owning delegate. Unknown names are ignored.
func (m *Muxer) Activate(flat string, param any) {
	ns, local, ok := m.Lookup(flat)
	if !ok {
		logging.Debugf("action: activate of unknown action %q ignored", flat)
		return
	}
	m.delegates[ns].group.Activate(local, param)
}

// ChangeState forwards to the owning delegate. Unknown names are ignored.
func (m *Muxer) ChangeState(flat string, value any) {
	ns, local, ok := m.Lookup(flat)
	if !ok {
		logging.Debugf("action: state change of unknown action %q ignored", flat)
		return
	}
	m.delegates[ns].group.ChangeState(local, value)
}

// Subscribe registers an observer of flattened events.
func (m *Muxer) Subscribe(obs Observer) func() {
	return m.observers.add(obs)
}

func flatten(namespace, name string) string {
	if namespace == Global {
		return name
	}
	return namespace + Separator + name
}
