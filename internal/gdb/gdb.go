// Package gdb is C8: the r_debug-equivalent bookkeeping a debugger
// attaches to in order to enumerate loaded modules. It mirrors the
// doubly-linked list and RT_CONSISTENT/RT_ADD/RT_DELETE state machine
// bionic's linker maintains at _r_debug (spec.md §4.8), threaded
// through Module.Debug rather than a separate node allocation.
package gdb

import (
	"sync"

	"github.com/binarycraft007/bionic-translation/internal/module"
)

// State mirrors r_debug.r_state.
type State int

const (
	StateConsistent State = iota
	StateAdd
	StateDelete
)

// List is the debugger-visible doubly-linked module list plus its
// current transition state. A real bionic linker sets a breakpoint at
// a fixed function (_dl_debug_state) a debugger traps on every state
// change; this loader exposes the same transitions via NotifyFunc so a
// host-side integration can install its own trap.
type List struct {
	mu    sync.Mutex
	head  *module.Module
	tail  *module.Module
	state State

	// Notify, if set, is invoked after every state transition — the
	// Go-native substitute for a debugger breakpoint at a fixed symbol.
	Notify func(State)
}

func New() *List { return &List{} }

func (l *List) setState(s State) {
	l.state = s
	if l.Notify != nil {
		l.Notify(s)
	}
}

// Add splices m onto the tail of the list, bracketed by an RT_ADD /
// RT_CONSISTENT transition pair.
func (l *List) Add(m *module.Module) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setState(StateAdd)

	m.Debug.Prev = l.tail
	m.Debug.Next = nil
	if l.tail != nil {
		l.tail.Debug.Next = m
	} else {
		l.head = m
	}
	l.tail = m

	l.setState(StateConsistent)
}

// Delete unsplices m, bracketed by an RT_DELETE / RT_CONSISTENT
// transition pair. The caller is responsible for not unmapping the
// module's segments until after this returns, so a debugger reading
// the list mid-transition never sees a dangling node.
func (l *List) Delete(m *module.Module) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setState(StateDelete)

	if m.Debug.Prev != nil {
		m.Debug.Prev.Debug.Next = m.Debug.Next
	} else if l.head == m {
		l.head = m.Debug.Next
	}
	if m.Debug.Next != nil {
		m.Debug.Next.Debug.Prev = m.Debug.Prev
	} else if l.tail == m {
		l.tail = m.Debug.Prev
	}
	m.Debug.Prev, m.Debug.Next = nil, nil

	l.setState(StateConsistent)
}

// Modules returns every module currently on the list, head to tail.
func (l *List) Modules() []*module.Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*module.Module
	for m := l.head; m != nil; m = m.Debug.Next {
		out = append(out, m)
	}
	return out
}

func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
