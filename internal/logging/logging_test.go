package logging

import (
	"bytes"
	"log"
	"testing"
)

func withCapturedOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := std
	std = log.New(&buf, "", 0)
	t.Cleanup(func() { std = orig })
	return &buf
}

func TestSetLevelGatesOutput(t *testing.T) {
	buf := withCapturedOutput(t)

	SetLevel(LevelError)
	Infof("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("Infof wrote output at LevelError: %q", buf.String())
	}

	SetLevel(LevelInfo)
	Infof("hello %d", 42)
	if got := buf.String(); got == "" {
		t.Fatal("Infof wrote nothing at LevelInfo")
	}
}

func TestLevelOrdering(t *testing.T) {
	buf := withCapturedOutput(t)
	SetLevel(LevelWarn)

	Errorf("err")
	Warnf("warn")
	Tracef("trace")

	got := buf.String()
	if !bytes.Contains([]byte(got), []byte("[error]")) {
		t.Error("Errorf should be enabled at LevelWarn")
	}
	if !bytes.Contains([]byte(got), []byte("[warn]")) {
		t.Error("Warnf should be enabled at LevelWarn")
	}
	if bytes.Contains([]byte(got), []byte("[trace]")) {
		t.Error("Tracef should be suppressed at LevelWarn")
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelError: "error",
		LevelWarn:  "warn",
		LevelInfo:  "info",
		LevelTrace: "trace",
		Level(99):  "unknown",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
