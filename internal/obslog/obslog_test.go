package obslog

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetAndRestoreNop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	L().Info("hello", zap.String("k", "v"))
	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["k"]; got != "v" {
		t.Fatalf("unexpected field: %v", got)
	}
}

func TestOptionsFromEnvFallsBackToLegacy(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_TO_FILE", "")
	opts := OptionsFromEnv()
	if opts.Format != "legacy" {
		t.Fatalf("format=%q", opts.Format)
	}
	if opts.ToFile {
		t.Fatalf("file logging should default off")
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	l, err := Build(Options{Level: "debug", ToFile: true, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l.Debug("written")
	_ = l.Sync()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}
