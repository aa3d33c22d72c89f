// Package reloc applies a module's relocation entries once its segments
// are mapped: the per-symbol resolver pipeline of spec.md §4.5, followed
// by the architecture-specific relocation kind switches, run in the
// fixed order PLT, then non-PLT, then RELR.
package reloc

import (
	"fmt"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/logging"
	"github.com/binarycraft007/bionic-translation/internal/module"
	"github.com/binarycraft007/bionic-translation/internal/symbol"
)

// HostLookup resolves a plain C symbol name against the host's own
// symbol table (internal/hostsym, a cgo boundary). It returns the
// resolved address and whether it is a function, for wrapper-creation
// purposes.
type HostLookup func(name string) (addr uintptr, isFunc bool, ok bool)

// GLLookup queries the host's EGL process-address function for names
// that begin with "gl" — the OpenGL extension step of the pipeline.
type GLLookup func(name string) (uintptr, bool)

// WrapperCreate is C10's wrapper-create hook: an identity pass today,
// but where cross-ABI calling-convention repair for a resolved function
// pointer would be inserted.
type WrapperCreate func(name string, addr uintptr) uintptr

// StubCreate builds the run-time "die at runtime" stub for step 6 of
// the pipeline (internal/reloc/stub.go).
type StubCreate func(name string) (uintptr, error)

// Env bundles everything the resolver pipeline needs beyond the module
// being relocated: the other modules it can see, and the host-facing
// hooks that have no pure-Go implementation.
type Env struct {
	Preloads []*module.Module
	MainExe  *module.Module

	HostLookup    HostLookup
	GLLookup      GLLookup
	WrapperCreate WrapperCreate
	StubCreate    StubCreate

	// DieAtRuntime mirrors LINKER_DIE_AT_RUNTIME: when true, an
	// otherwise-unresolved function symbol is bound to a generated
	// abort stub instead of failing the load.
	DieAtRuntime bool
}

// nonLocalGotoSave is the name the original loader special-cases
// because a plain name-based host lookup picks the wrong libc internal
// (spec.md §4.5 step 5: "the non-local-goto save symbol").
const nonLocalGotoSave = "__sigsetjmp"

// resolution is what the pipeline produces for one symbol reference:
// either a concrete address, or "unresolved but weak" (in which case
// the caller substitutes the architecture- and kind-specific default),
// or an error for an unresolved non-weak reference.
type resolution struct {
	addr     uintptr
	resolved bool
	isFunc   bool
}

// resolveSymbol runs the eight-step pipeline against one Rela-derived
// symbol reference from module m.
func resolveSymbol(m *module.Module, env Env, sym elfconst.Sym64, name string, isWeak bool) (resolution, error) {
	// 1. Shim override.
	if addr, isFunc, ok := env.HostLookup("bionic_" + name); ok {
		return resolution{addr: addr, resolved: true, isFunc: isFunc}, nil
	}

	// 2. Intra-guest lookup via C4.
	if res, ok := symbol.LookupFromModule(m, env.Preloads, env.MainExe, name); ok {
		addr := res.Address()
		if elfconst.StType(res.Sym.Info) == elfconst.STT_FUNC {
			addr = env.WrapperCreate(name, addr)
		}
		return resolution{addr: addr, resolved: true, isFunc: true}, nil
	}

	// 3. Host plain lookup.
	if name == nonLocalGotoSave {
		// 5. Special case: substituted explicitly rather than via the
		// generic plain-name host lookup, since the name alone does not
		// select the correct host implementation.
		if addr, isFunc, ok := env.HostLookup(nonLocalGotoSave); ok {
			return resolution{addr: addr, resolved: true, isFunc: isFunc}, nil
		}
	} else if addr, isFunc, ok := env.HostLookup(name); ok {
		if isFunc {
			addr = env.WrapperCreate(name, addr)
		}
		return resolution{addr: addr, resolved: true, isFunc: isFunc}, nil
	}

	// 4. OpenGL extension: names beginning with "gl" go through the
	// host's EGL process-address query.
	if len(name) >= 2 && name[0] == 'g' && name[1] == 'l' && env.GLLookup != nil {
		if addr, ok := env.GLLookup(name); ok {
			return resolution{addr: addr, resolved: true, isFunc: true}, nil
		}
	}

	// 6. Run-time stub, only for function symbols, only when configured.
	if env.DieAtRuntime && elfconst.StType(sym.Info) == elfconst.STT_FUNC && env.StubCreate != nil {
		addr, err := env.StubCreate(name)
		if err != nil {
			return resolution{}, fmt.Errorf("reloc: building die-at-runtime stub for %q: %w", name, err)
		}
		logging.Warnf("%s hooked symbol %s to symbol_not_linked_stub (LINKER_DIE_AT_RUNTIME)", m.Name, name)
		return resolution{addr: addr, resolved: true, isFunc: true}, nil
	}

	// 7/8. Unresolved: non-weak is an error, weak falls through with
	// resolved=false so the architecture-specific switch picks the
	// per-kind default (zero / self-reference / load base).
	if !isWeak {
		return resolution{}, fmt.Errorf("reloc: cannot locate symbol %q referenced by %q", name, m.Name)
	}
	return resolution{resolved: false}, nil
}
