package bionic

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewContextLoadsConfig(t *testing.T) {
	t.Setenv("BIONIC_LD_LIBRARY_PATH", "")
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if ctx.Config() == nil {
		t.Fatal("Config() returned nil after NewContext")
	}
}

func TestOpenRejectsMissingLibrary(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, err := ctx.Open("libdoesnotexist.so", 0); err == nil {
		t.Fatal("expected an error opening a library that is not on any search path")
	}
	if msg := ctx.LastError(); msg == "" {
		t.Fatal("LastError() should be latched after a failed Open")
	}
	if msg := ctx.LastError(); msg != "" {
		t.Fatalf("LastError() should clear the latch on read, got %q", msg)
	}
}

func TestOpenFindsLibraryOnFallbackPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "libnodyn.so"), []byte{0}, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctx.AddSearchPath(dir)

	// The fixture is not a valid ELF object, so Open is expected to fail
	// past the search step; this exercises path resolution, not linking.
	if _, err := ctx.Open("libnodyn.so", 0); err == nil {
		t.Fatal("expected an error past path resolution for a non-ELF fixture")
	}
}

func TestLookupOnNilGuestHandleFails(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, err := ctx.Lookup(Handle{}, "anything"); err == nil {
		t.Fatal("expected an error looking up against a nil guest handle")
	}
}

func TestAddrInfoMissOnEmptyRegistry(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, ok := ctx.AddrInfo(0x1000); ok {
		t.Fatal("AddrInfo should miss on an empty registry")
	}
}
