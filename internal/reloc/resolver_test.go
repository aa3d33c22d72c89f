package reloc

import (
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/module"
)

func noHost(name string) (uintptr, bool, bool)       { return 0, false, false }
func noGL(name string) (uintptr, bool)                { return 0, false }
func identityWrap(name string, addr uintptr) uintptr { return addr }

func symRef(name string, weak bool) (elfconst.Sym64, string, bool) {
	sym := elfconst.Sym64{Info: elfconst.STB_GLOBAL << 4, Shndx: elfconst.SHN_UNDEF}
	if weak {
		sym.Info = elfconst.STB_WEAK << 4
	}
	return sym, name, weak
}

func TestResolveSymbolShimOverrideWinsFirst(t *testing.T) {
	env := Env{
		HostLookup: func(name string) (uintptr, bool, bool) {
			if name == "bionic_open" {
				return 0xABCD, true, true
			}
			return 0, false, false
		},
		GLLookup:      noGL,
		WrapperCreate: identityWrap,
	}
	sym, name, weak := symRef("open", false)
	res, err := resolveSymbol(&module.Module{}, env, sym, name, weak)
	if err != nil {
		t.Fatalf("resolveSymbol: %v", err)
	}
	if res.addr != 0xABCD {
		t.Errorf("shim override should win, got addr %#x", res.addr)
	}
}

func TestResolveSymbolFallsBackToHostPlainLookup(t *testing.T) {
	env := Env{
		HostLookup: func(name string) (uintptr, bool, bool) {
			if name == "malloc" {
				return 0x5000, true, true
			}
			return 0, false, false
		},
		GLLookup:      noGL,
		WrapperCreate: identityWrap,
	}
	sym, name, weak := symRef("malloc", false)
	res, err := resolveSymbol(&module.Module{}, env, sym, name, weak)
	if err != nil {
		t.Fatalf("resolveSymbol: %v", err)
	}
	if res.addr != 0x5000 {
		t.Errorf("host plain lookup should resolve malloc, got %#x", res.addr)
	}
}

func TestResolveSymbolGLLookupForGLPrefixedNames(t *testing.T) {
	env := Env{
		HostLookup: noHost,
		GLLookup: func(name string) (uintptr, bool) {
			if name == "glDrawArrays" {
				return 0x6000, true
			}
			return 0, false
		},
		WrapperCreate: identityWrap,
	}
	sym, name, weak := symRef("glDrawArrays", false)
	res, err := resolveSymbol(&module.Module{}, env, sym, name, weak)
	if err != nil {
		t.Fatalf("resolveSymbol: %v", err)
	}
	if res.addr != 0x6000 {
		t.Errorf("GL lookup should resolve glDrawArrays, got %#x", res.addr)
	}
}

func TestResolveSymbolSigsetjmpSpecialCase(t *testing.T) {
	env := Env{
		HostLookup: func(name string) (uintptr, bool, bool) {
			if name == "__sigsetjmp" {
				return 0x7000, true, true
			}
			return 0, false, false
		},
		GLLookup:      noGL,
		WrapperCreate: identityWrap,
	}
	sym, name, weak := symRef("__sigsetjmp", false)
	res, err := resolveSymbol(&module.Module{}, env, sym, name, weak)
	if err != nil {
		t.Fatalf("resolveSymbol: %v", err)
	}
	if res.addr != 0x7000 {
		t.Errorf("sigsetjmp special case should resolve via plain host lookup, got %#x", res.addr)
	}
}

func TestResolveSymbolDieAtRuntimeStub(t *testing.T) {
	env := Env{
		HostLookup:   noHost,
		GLLookup:     noGL,
		DieAtRuntime: true,
		StubCreate: func(name string) (uintptr, error) {
			return 0x8000, nil
		},
	}
	sym := elfconst.Sym64{Info: (elfconst.STB_GLOBAL << 4) | elfconst.STT_FUNC, Shndx: elfconst.SHN_UNDEF}
	res, err := resolveSymbol(&module.Module{}, env, sym, "missing_func", false)
	if err != nil {
		t.Fatalf("resolveSymbol: %v", err)
	}
	if res.addr != 0x8000 {
		t.Errorf("die-at-runtime stub should resolve missing_func, got %#x", res.addr)
	}
}

func TestResolveSymbolUnresolvedNonWeakFails(t *testing.T) {
	env := Env{HostLookup: noHost, GLLookup: noGL}
	sym, name, weak := symRef("totally_missing", false)
	if _, err := resolveSymbol(&module.Module{}, env, sym, name, weak); err == nil {
		t.Fatal("an unresolved non-weak reference should fail")
	}
}

func TestResolveSymbolUnresolvedWeakFallsThroughWithoutError(t *testing.T) {
	env := Env{HostLookup: noHost, GLLookup: noGL}
	sym, name, weak := symRef("weak_missing", true)
	res, err := resolveSymbol(&module.Module{}, env, sym, name, weak)
	if err != nil {
		t.Fatalf("an unresolved weak reference should not error, got %v", err)
	}
	if res.resolved {
		t.Fatal("an unresolved weak reference should report resolved=false")
	}
}
