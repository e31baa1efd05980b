package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger() {
	Replace(nil)
}

// TestInit uses table-driven tests.
func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"empty format is json", "warn", "", zapcore.WarnLevel, false},
		{"json error", "error", "json", zapcore.ErrorLevel, false},
		{"invalid level", "invalid", "json", 0, true},
		{"invalid format", "info", "xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger()
			err := Init(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !L().Core().Enabled(tt.wantLevel) {
				t.Errorf("level %v should be enabled", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && L().Core().Enabled(tt.wantLevel-1) {
				t.Errorf("level %v should be disabled", tt.wantLevel-1)
			}
		})
	}
}

func TestL_NopBeforeInit(t *testing.T) {
	resetLogger()

	if L() == nil {
		t.Fatal("L() returned nil before Init")
	}
	// Must not panic.
	Info("not initialized")
	if err := Sync(); err != nil {
		t.Errorf("Sync() on nil logger error = %v", err)
	}
}

func TestNamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Replace(zap.New(core))
	t.Cleanup(resetLogger)

	Named("reset").With(zap.String("run_id", "r-1")).Info("stage finished")
	With(zap.Int("rows", 3)).Warn("rows skipped")
	Debug("hidden")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].LoggerName != "reset" {
		t.Errorf("LoggerName = %q, want reset", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["run_id"] != "r-1" {
		t.Errorf("run_id = %v", entries[0].ContextMap()["run_id"])
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("Level = %v, want warn", entries[1].Level)
	}
}
