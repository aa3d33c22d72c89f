// Package pathresolve turns a guest-requested library name (as it
// appears in a DT_NEEDED entry or a dlopen() argument) into the
// basename the registry keys modules by, and locates the file on disk
// that name should be read from.
package pathresolve

import (
	"path/filepath"
	"strings"

	"github.com/binarycraft007/bionic-translation/internal/config"
)

const (
	systemLibPrefix   = "/system/lib/"
	systemLib64Prefix = "/system/lib64/"
)

// Resolver applies the override map and search path list to names the
// loader is asked to open, matching apkenv_find_library's name
// normalization followed by apkenv_open_library's search order.
type Resolver struct {
	overrides map[string]string
	// searchPaths is BIONIC_LD_LIBRARY_PATH split on ':', in order.
	searchPaths []string
	// fallbackPaths are additional built-in directories searched after
	// searchPaths is exhausted (apkenv_sopaths, populated via
	// apkenv_add_sopath by embedders of the original loader).
	fallbackPaths []string
}

// New builds a Resolver from a loaded Config, seeding the search path
// list from BIONIC_LD_LIBRARY_PATH when present.
func New(cfg *config.Config, fallbackPaths ...string) *Resolver {
	r := &Resolver{
		overrides:     make(map[string]string, len(cfg.Overrides)),
		fallbackPaths: fallbackPaths,
	}
	for _, o := range cfg.Overrides {
		r.overrides[o.From] = o.To
	}
	if cfg.HasLDLibraryPath {
		r.searchPaths = splitNonEmpty(cfg.LDLibraryPath, ":")
	}
	return r
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize strips a leading /system/lib/ or /system/lib64/ prefix,
// applies the override map, and reduces the result to its basename —
// the same three steps apkenv_find_library performs before it ever
// touches the in-memory module list.
func (r *Resolver) Normalize(name string) string {
	switch {
	case strings.HasPrefix(name, systemLibPrefix):
		name = name[len(systemLibPrefix):]
	case strings.HasPrefix(name, systemLib64Prefix):
		name = name[len(systemLib64Prefix):]
	}

	if to, ok := r.overrides[name]; ok {
		name = to
	}

	return filepath.Base(name)
}

// Locate searches, in order, every directory in BIONIC_LD_LIBRARY_PATH
// and then every fallback path, for a regular file named after name
// (already normalized by the caller via Normalize), returning the full
// path of the first match. It reports ok=false if none of the search
// directories contain the file — the caller (internal/elfreader, via
// internal/pathio) is responsible for actually opening it, since this
// package does no I/O of its own.
func (r *Resolver) Locate(name string, exists func(path string) bool) (string, bool) {
	if name == "" {
		return "", false
	}

	for _, dir := range r.searchPaths {
		candidate := filepath.Join(dir, name)
		if exists(candidate) {
			return candidate, true
		}
	}
	for _, dir := range r.fallbackPaths {
		candidate := filepath.Join(dir, name)
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// AddFallback appends a directory to the fallback search list, mirroring
// apkenv_add_sopath; duplicates are ignored.
func (r *Resolver) AddFallback(path string) {
	for _, p := range r.fallbackPaths {
		if p == path {
			return
		}
	}
	r.fallbackPaths = append(r.fallbackPaths, path)
}
