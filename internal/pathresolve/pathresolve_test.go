package pathresolve

import (
	"testing"

	"github.com/binarycraft007/bionic-translation/internal/config"
)

func TestNormalizeStripsSystemLibPrefix(t *testing.T) {
	r := New(&config.Config{})

	cases := map[string]string{
		"/system/lib/libc.so":   "libc.so",
		"/system/lib64/libm.so": "libm.so",
		"libc.so":               "libc.so",
		"/opt/foo/libfoo.so":    "libfoo.so",
	}
	for in, want := range cases {
		if got := r.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAppliesOverrideAfterPrefixStrip(t *testing.T) {
	cfg := &config.Config{Overrides: []config.Override{
		{From: "libc.so", To: "libc_bio.so.0"},
	}}
	r := New(cfg)

	if got := r.Normalize("/system/lib/libc.so"); got != "libc_bio.so.0" {
		t.Errorf("Normalize() = %q, want libc_bio.so.0", got)
	}
}

func TestLocateSearchesLDLibraryPathBeforeFallback(t *testing.T) {
	cfg := &config.Config{HasLDLibraryPath: true, LDLibraryPath: "/a:/b"}
	r := New(cfg, "/fallback")

	var seen []string
	exists := func(path string) bool {
		seen = append(seen, path)
		return path == "/b/libfoo.so"
	}

	got, ok := r.Locate("libfoo.so", exists)
	if !ok || got != "/b/libfoo.so" {
		t.Fatalf("Locate() = (%q, %v), want (/b/libfoo.so, true)", got, ok)
	}
	want := []string{"/a/libfoo.so", "/b/libfoo.so"}
	if len(seen) != len(want) {
		t.Fatalf("probed %v, want %v", seen, want)
	}
}

func TestLocateFallsBackWhenNotInLDLibraryPath(t *testing.T) {
	cfg := &config.Config{HasLDLibraryPath: true, LDLibraryPath: "/a"}
	r := New(cfg, "/fallback")

	got, ok := r.Locate("libfoo.so", func(path string) bool {
		return path == "/fallback/libfoo.so"
	})
	if !ok || got != "/fallback/libfoo.so" {
		t.Fatalf("Locate() = (%q, %v), want (/fallback/libfoo.so, true)", got, ok)
	}
}

func TestLocateNotFound(t *testing.T) {
	r := New(&config.Config{})
	if _, ok := r.Locate("libfoo.so", func(string) bool { return false }); ok {
		t.Errorf("Locate() reported found with no search paths configured")
	}
}

func TestAddFallbackDeduplicates(t *testing.T) {
	r := New(&config.Config{})
	r.AddFallback("/opt/lib")
	r.AddFallback("/opt/lib")
	if len(r.fallbackPaths) != 1 {
		t.Errorf("fallbackPaths = %v, want exactly one entry", r.fallbackPaths)
	}
}
