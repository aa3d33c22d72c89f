// Package logging gives every component one narrow seam for diagnostic
// output instead of scattering fmt.Println/os.Stderr calls, the same
// shape the teacher's verbose-mode checks (cli.go's VerboseMode,
// macho.go's FLAP_DEBUG) use, but collapsed into a single leveled logger
// gated by BIONIC_TRANSLATION_VERBOSE.
package logging

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/xyproto/env/v2"
)

// Level controls which calls actually reach the log package.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

var (
	mu      sync.Mutex
	current = LevelError
	std     = log.New(os.Stderr, "", log.LstdFlags)
	once    sync.Once
)

// Init reads BIONIC_TRANSLATION_VERBOSE once and sets the process-wide
// level. Safe to call more than once; only the first call has effect.
// A context that needs an isolated level (tests, embedders) should use
// SetLevel directly instead.
func Init() {
	once.Do(func() {
		v := env.StrAlt("BIONIC_TRANSLATION_VERBOSE", "0")
		n, err := strconv.Atoi(v)
		if err != nil {
			n = 0
		}
		SetLevel(Level(n))
	})
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

func enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return l <= current
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		std.Printf("[error] "+format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		std.Printf("[warn] "+format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		std.Printf("[info] "+format, args...)
	}
}

func Tracef(format string, args ...any) {
	if enabled(LevelTrace) {
		std.Printf("[trace] "+format, args...)
	}
}
