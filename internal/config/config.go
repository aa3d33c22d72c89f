// Package config reads the startup-time knobs the loader needs before it
// can open anything: the libname override map (bionic_translation's
// cfg.d directories) and the small handful of environment variables the
// original construct() constructor consulted.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/binarycraft007/bionic-translation/internal/logging"
)

// Override is one "from to" line out of a cfg.d file: a guest-visible
// library name mapped to the host-visible replacement.
type Override struct {
	From string
	To   string
}

// Config holds everything read from the environment and cfg.d directories
// at process start. It is built once by Load and then treated as
// read-only for the lifetime of the Context that owns it.
type Config struct {
	Overrides []Override

	// LDLibraryPath is BIONIC_LD_LIBRARY_PATH, colon-separated, unset
	// when the variable is absent (as opposed to empty).
	LDLibraryPath string
	HasLDLibraryPath bool

	// XDGDataDirs is XDG_DATA_DIRS, defaulting to the same two paths
	// glibc itself falls back to when the variable is unset.
	XDGDataDirs string

	DieAtRuntime   bool
	LocaleOverride bool
}

const (
	defaultXDGDataDirs = "/usr/local/share:/usr/share"
	cfgSubdir          = "bionic_translation/cfg.d"
	systemCfgDir       = "/etc/bionic_translation/cfg.d"
)

// Load reproduces construct()'s bootstrap order: walk XDG_DATA_DIRS
// (falling back to the glibc default when unset), then /etc, appending
// overrides from every cfg.d directory found along the way, then read
// the remaining environment knobs.
func Load() *Config {
	c := &Config{
		XDGDataDirs:    env.StrAlt("XDG_DATA_DIRS", defaultXDGDataDirs),
		DieAtRuntime:   env.Bool("LINKER_DIE_AT_RUNTIME"),
		LocaleOverride: env.Bool("BIONIC_LOCALE_OVERRIDE"),
	}

	if v, ok := os.LookupEnv("BIONIC_LD_LIBRARY_PATH"); ok {
		c.LDLibraryPath = v
		c.HasLDLibraryPath = true
	}

	for _, dir := range strings.Split(c.XDGDataDirs, ":") {
		if dir == "" {
			continue
		}
		c.readCfgDir(filepath.Join(dir, cfgSubdir))
	}
	c.readCfgDir(systemCfgDir)

	return c
}

// LocaleOverrideEnabled reports whether BIONIC_LOCALE_OVERRIDE was set,
// consulted by the shim facade before honoring a guest setlocale call
// (the shim functions themselves are out of scope here).
func (c *Config) LocaleOverrideEnabled() bool {
	return c.LocaleOverride
}

func (c *Config) readCfgDir(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		// Matches read_cfg_dir: a missing cfg.d directory is not an
		// error, it just contributes no overrides.
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		c.readCfgFile(filepath.Join(path, e.Name()))
	}
}

func (c *Config) readCfgFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		logging.Warnf("config: failed to open %s: %v", path, err)
		os.Exit(1)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	linenum := 1
	for sc.Scan() {
		line := sc.Text()
		c.processCfgLine(line, path, linenum)
		linenum++
	}
	if err := sc.Err(); err != nil {
		logging.Warnf("config: error reading %s: %v", path, err)
		os.Exit(1)
	}
}

func (c *Config) processCfgLine(line, path string, linenum int) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 2 {
		fmt.Fprintf(os.Stderr, "error reading cfg: %s:%d\n", path, linenum)
		os.Exit(1)
	}

	c.Overrides = append(c.Overrides, Override{From: fields[0], To: fields[1]})
}
