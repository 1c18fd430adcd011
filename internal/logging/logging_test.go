package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level %s, got %s", LevelInfo, cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("Expected default format %s, got %s", FormatText, cfg.Format)
	}
	if cfg.Output != DefaultLogFile {
		t.Errorf("Expected default output '%s', got '%s'", DefaultLogFile, cfg.Output)
	}
	if cfg.AddSource {
		t.Error("Expected AddSource to be false by default")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("stderr json logger", func(t *testing.T) {
		logger, err := New(Config{Level: LevelError, Format: FormatJSON, Output: "stderr"})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger == nil {
			t.Fatal("Logger should not be nil")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close on a non-file logger should be a no-op, got %v", err)
		}
	})

	t.Run("file logger appends", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "scan.log")
		cfg := Config{Level: LevelInfo, Format: FormatText, Output: logFile}

		for _, msg := range []string{"first run", "second run"} {
			logger, err := New(cfg)
			if err != nil {
				t.Fatalf("Failed to create file logger: %v", err)
			}
			logger.Info(msg)
			if err := logger.Close(); err != nil {
				t.Fatalf("Failed to close logger: %v", err)
			}
		}

		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "first run") || !strings.Contains(output, "second run") {
			t.Errorf("Expected both runs in the log file, got: %s", output)
		}
	})

	t.Run("invalid directory for file logger", func(t *testing.T) {
		_, err := New(Config{Level: LevelInfo, Format: FormatText, Output: "/proc/invalid/path/test.log"})
		if err == nil {
			t.Error("Expected error for invalid log file path")
		}
	})
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     LogLevel
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug level", LevelDebug, true, true, true},
		{"info level", LevelInfo, false, true, true},
		{"warn level", LevelWarn, false, false, true},
		{"unknown defaults to info", LogLevel("loud"), false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, Config{Level: tt.level, Format: FormatText})

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")

			output := buf.String()
			if strings.Contains(output, "debug message") != tt.debugSeen {
				t.Errorf("debug visibility mismatch: %s", output)
			}
			if strings.Contains(output, "info message") != tt.infoSeen {
				t.Errorf("info visibility mismatch: %s", output)
			}
			if strings.Contains(output, "warn message") != tt.warnSeen {
				t.Errorf("warn visibility mismatch: %s", output)
			}
		})
	}
}

func TestLoggerWithMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: LevelDebug, Format: FormatJSON})

	derived := logger.WithComponent("sweep").WithRunID("run-1").WithTarget("example.com")
	if derived == logger {
		t.Fatal("With* should return a new logger instance")
	}

	derived.InfoScan("port scan finished", "10.0.0.1", "open_ports", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected a JSON record, got %q: %v", buf.String(), err)
	}

	expected := map[string]any{
		"msg":        "port scan finished",
		"component":  "sweep",
		"run_id":     "run-1",
		"target":     "example.com",
		"host":       "10.0.0.1",
		"open_ports": float64(2),
	}
	for key, want := range expected {
		if record[key] != want {
			t.Errorf("Expected %s=%v, got %v", key, want, record[key])
		}
	}
}

func TestDomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: LevelDebug, Format: FormatText})

	logger.InfoDiscovery("discovery finished", "10.0.0.1", "hosts", 1)
	logger.ErrorDiscovery("discovery failed", "10.0.0.2", errors.New("exit status 1"))
	logger.ErrorScan("port scan failed", "10.0.0.3", errors.New("boom"))
	logger.WithError(errors.New("cause")).Warn("degraded")

	output := buf.String()
	for _, want := range []string{
		"address=10.0.0.1", "hosts=1",
		"address=10.0.0.2", `error="exit status 1"`,
		"host=10.0.0.3", "error=boom",
		"error=cause",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("Nop logger should not be nil")
	}
	logger.Error("dropped")
}
