package inventory

import (
	"slices"

	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/notify"
)

// ChangeKind says what happened to a fragment.
type ChangeKind string

const (
	ChangeUnlocked ChangeKind = "unlocked"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is sent to listeners after the inventory mutates.
type Change struct {
	Kind ChangeKind
	ID   mask.FragmentID
}

// Inventory tracks which fragments the player has unlocked.
type Inventory interface {
	// Unlock adds id and reports whether it was newly added.
	Unlock(id mask.FragmentID) bool
	// Unlocked returns ids in unlock order.
	Unlocked() []mask.FragmentID
	// Remove drops id and reports whether it was present.
	Remove(id mask.FragmentID) bool
	// Has reports whether id is unlocked.
	Has(id mask.FragmentID) bool
	// OnChange registers fn for changes.
	OnChange(fn func(Change)) (unsubscribe func())
}

// Memory is a session-only Inventory.
type Memory struct {
	ids       []mask.FragmentID
	listeners notify.Registry[Change]
}

var _ Inventory = (*Memory)(nil)

// NewMemory returns an inventory holding the given starting fragments.
func NewMemory(starting ...mask.FragmentID) *Memory {
	m := &Memory{}
	for _, id := range starting {
		if id != "" && !slices.Contains(m.ids, id) {
			m.ids = append(m.ids, id)
		}
	}
	return m
}

func (m *Memory) Unlock(id mask.FragmentID) bool {
	if id == "" || slices.Contains(m.ids, id) {
		return false
	}
	m.ids = append(m.ids, id)
	m.listeners.Notify(Change{Kind: ChangeUnlocked, ID: id})
	return true
}

func (m *Memory) Unlocked() []mask.FragmentID {
	return slices.Clone(m.ids)
}

func (m *Memory) Remove(id mask.FragmentID) bool {
	i := slices.Index(m.ids, id)
	if i < 0 {
		return false
	}
	m.ids = slices.Delete(m.ids, i, i+1)
	m.listeners.Notify(Change{Kind: ChangeRemoved, ID: id})
	return true
}

func (m *Memory) Has(id mask.FragmentID) bool {
	return slices.Contains(m.ids, id)
}

func (m *Memory) OnChange(fn func(Change)) (unsubscribe func()) {
	return m.listeners.Add(fn)
}
