// Package lifecycle is C7: constructor/destructor ordering. Constructors
// run depth-first over the dependency graph, dependencies before
// dependents, each module's init functions run at most once even if it
// is reachable through more than one path; destructors run in the
// reverse of recorded construction order (spec.md §4.6).
package lifecycle

import (
	"github.com/binarycraft007/bionic-translation/internal/logging"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

// CallConstructors runs m's own DT_PREINIT_ARRAY (root module only, per
// the dynamic loader ABI) before recursing into m's dependencies, then
// runs DT_INIT and DT_INIT_ARRAY once every dependency has constructed.
// The ConstructorsCalled latch makes this safe against both diamond
// dependencies and a dlopen issued from inside a constructor.
func CallConstructors(m *module.Module, isRoot bool, order *[]*module.Module) {
	if m == nil || m.ConstructorsCalled {
		return
	}
	m.ConstructorsCalled = true

	if isRoot {
		for _, fn := range m.PreinitArray {
			callVoid(fn)
		}
	}

	for _, dep := range m.NeededModule {
		CallConstructors(dep, false, order)
	}

	if m.Init != 0 {
		callVoid(m.Init)
	}
	for _, fn := range m.InitArray {
		callVoid(fn)
	}

	*order = append(*order, m)
	logging.Tracef("lifecycle: constructed %s", m.Name)
}

// CallDestructors runs every module's DT_FINI_ARRAY (reverse order
// within the array) then its DT_FINI, walking constructed in the
// reverse of the order CallConstructors recorded them.
func CallDestructors(constructed []*module.Module) {
	for i := len(constructed) - 1; i >= 0; i-- {
		m := constructed[i]
		for j := len(m.FiniArray) - 1; j >= 0; j-- {
			callVoid(m.FiniArray[j])
		}
		if m.Fini != 0 {
			callVoid(m.Fini)
		}
		logging.Tracef("lifecycle: destructed %s", m.Name)
	}
}
