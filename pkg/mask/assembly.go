package mask

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/mask-engine/pkg/notify"
)

var (
	ErrNoSocket       = errors.New("socket does not exist")
	ErrSocketRejected = errors.New("socket does not accept this fragment")
)

// DefaultSocketCount is the number of assemble sockets on the mask.
const DefaultSocketCount = 4

// SocketSpec describes one assemble socket.
type SocketSpec struct {
	Name     string
	Any      bool          // accepts any attribute type
	Accepts  AttributeType // ignored when Any is set
	Required bool          // must be filled for Complete
}

// accepts reports whether the socket takes f.
func (s SocketSpec) accepts(f Fragment) bool {
	if f.Def == nil {
		return false
	}
	return s.Any || f.Def.Type == s.Accepts
}

// DefaultSockets returns DefaultSocketCount required sockets accepting any
// fragment.
func DefaultSockets() []SocketSpec {
	specs := make([]SocketSpec, DefaultSocketCount)
	for i := range specs {
		specs[i] = SocketSpec{Name: fmt.Sprintf("slot-%d", i+1), Any: true, Required: true}
	}
	return specs
}

type socket struct {
	spec     SocketSpec
	fragment Fragment
}

// Assembly is the set of sockets the player fills. Every change resolves the
// state again and notifies listeners in registration order.
type Assembly struct {
	resolver  *Resolver
	sockets   []socket
	state     State
	listeners notify.Registry[State]
}

// NewAssembly builds an assembly with the given sockets, or DefaultSockets
// when none are given. A nil resolver uses DefaultResolver.
func NewAssembly(resolver *Resolver, specs ...SocketSpec) *Assembly {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	if len(specs) == 0 {
		specs = DefaultSockets()
	}
	a := &Assembly{resolver: resolver, sockets: make([]socket, len(specs))}
	for i, s := range specs {
		a.sockets[i].spec = s
	}
	a.state = resolver.Resolve(nil)
	return a
}

// Len returns the number of sockets.
func (a *Assembly) Len() int {
	return len(a.sockets)
}

// Socket returns the spec and occupant of socket i.
func (a *Assembly) Socket(i int) (SocketSpec, Fragment, bool) {
	if i < 0 || i >= len(a.sockets) {
		return SocketSpec{}, Fragment{}, false
	}
	return a.sockets[i].spec, a.sockets[i].fragment, true
}

// Place puts f into socket i and returns the fragment it displaced, if any.
func (a *Assembly) Place(i int, f Fragment) (Fragment, error) {
	if i < 0 || i >= len(a.sockets) {
		return Fragment{}, fmt.Errorf("%w: %d", ErrNoSocket, i)
	}
	if !a.sockets[i].spec.accepts(f) {
		return Fragment{}, fmt.Errorf("%w: socket %s", ErrSocketRejected, a.sockets[i].spec.Name)
	}
	prev := a.sockets[i].fragment
	a.sockets[i].fragment = f
	a.changed()
	return prev, nil
}

// Remove empties socket i and returns what it held.
func (a *Assembly) Remove(i int) Fragment {
	if i < 0 || i >= len(a.sockets) || a.sockets[i].fragment.IsZero() {
		return Fragment{}
	}
	prev := a.sockets[i].fragment
	a.sockets[i].fragment = Fragment{}
	a.changed()
	return prev
}

// RemoveByID empties every socket holding the fragment definition id and
// returns how many were emptied. Used when the inventory drops a fragment.
func (a *Assembly) RemoveByID(id FragmentID) int {
	n := 0
	for i := range a.sockets {
		if f := a.sockets[i].fragment; f.Def != nil && f.Def.ID == id {
			a.sockets[i].fragment = Fragment{}
			n++
		}
	}
	if n > 0 {
		a.changed()
	}
	return n
}

// Clear empties every socket.
func (a *Assembly) Clear() {
	for i := range a.sockets {
		a.sockets[i].fragment = Fragment{}
	}
	a.changed()
}

// Equipped returns the occupied sockets' fragments in socket order.
func (a *Assembly) Equipped() []Fragment {
	var out []Fragment
	for _, s := range a.sockets {
		if !s.fragment.IsZero() {
			out = append(out, s.fragment)
		}
	}
	return out
}

// Complete reports whether every required socket is occupied.
func (a *Assembly) Complete() bool {
	for _, s := range a.sockets {
		if s.spec.Required && s.fragment.IsZero() {
			return false
		}
	}
	return true
}

// State returns the last resolved state.
func (a *Assembly) State() State {
	return a.state
}

// Summary is the current tally text; empty when nothing is equipped.
func (a *Assembly) Summary() string {
	return a.state.Summary()
}

// Subscribe registers fn for state changes. Call the returned function on
// teardown.
func (a *Assembly) Subscribe(fn func(State)) (unsubscribe func()) {
	return a.listeners.Add(fn)
}

func (a *Assembly) changed() {
	a.state = a.resolver.Resolve(a.Equipped())
	a.listeners.Notify(a.state)
}
