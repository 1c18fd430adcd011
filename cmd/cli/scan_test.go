package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/anscanner/internal/config"
	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
	"github.com/anstrom/anscanner/internal/report"
	"github.com/anstrom/anscanner/internal/scanning"
)

func TestReadTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"line with newline", "example.com:8080\n", "example.com:8080", false},
		{"surrounding whitespace", "  192.168.1.5 \n", "192.168.1.5", false},
		{"no trailing newline", "10.0.0.1", "10.0.0.1", false},
		{"empty input", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := readTarget(strings.NewReader(tt.input), &out)

			assert.Equal(t, targetPrompt, out.String())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Run("unset keys keep file values", func(t *testing.T) {
		cfg := config.Default()
		cfg.Scanning.Workers = 3

		applyOverrides(cfg, viper.New())

		assert.Equal(t, 3, cfg.Scanning.Workers)
		assert.Equal(t, "nmap", cfg.Scanning.NmapPath)
		assert.Equal(t, logging.DefaultLogFile, cfg.Logging.Output)
	})

	t.Run("explicit values win", func(t *testing.T) {
		v := viper.New()
		v.Set(flagNmapPath, "/opt/nmap/bin/nmap")
		v.Set(flagBackend, "xml")
		v.Set(flagTimeout, "90s")
		v.Set(flagWorkers, 4)
		v.Set(flagRateLimit, 2.5)
		v.Set(flagStrict, true)
		v.Set(flagDNSServer, "9.9.9.9:53")
		v.Set(flagLogFile, "stderr")
		v.Set(flagLogFormat, "json")
		v.Set(flagMetricsFile, "/var/lib/node_exporter/anscanner.prom")

		cfg := config.Default()
		applyOverrides(cfg, v)

		assert.Equal(t, "/opt/nmap/bin/nmap", cfg.Scanning.NmapPath)
		assert.True(t, cfg.UsesXMLBackend())
		assert.Equal(t, 90*time.Second, cfg.Scanning.CommandTimeout)
		assert.Equal(t, 4, cfg.Scanning.Workers)
		assert.InDelta(t, 2.5, cfg.Scanning.RateLimit, 1e-9)
		assert.True(t, cfg.Scanning.Strict)
		assert.Equal(t, "9.9.9.9:53", cfg.Scanning.DNSServer)
		assert.Equal(t, "stderr", cfg.Logging.Output)
		assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
		assert.Equal(t, "/var/lib/node_exporter/anscanner.prom", cfg.Metrics.TextfilePath)
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		v := viper.New()
		v.Set(flagLogLevel, "warn")
		v.Set(flagVerbose, true)

		cfg := config.Default()
		applyOverrides(cfg, v)
		assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`scanning:
  nmap_path: /usr/bin/nmap
  workers: 2
  command_timeout: 30s
logging:
  output: discard
`), 0o600))

	t.Run("file and overrides", func(t *testing.T) {
		v := viper.New()
		v.Set(flagWorkers, 8)

		cfg, err := loadConfig(path, v)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/nmap", cfg.Scanning.NmapPath)
		assert.Equal(t, 8, cfg.Scanning.Workers)
		assert.Equal(t, 30*time.Second, cfg.Scanning.CommandTimeout)
		assert.Equal(t, "discard", cfg.Logging.Output)
	})

	t.Run("invalid override", func(t *testing.T) {
		v := viper.New()
		v.Set(flagBackend, "grepable")

		_, err := loadConfig(path, v)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
	})

	t.Run("override fixes bad file value", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("scanning:\n  workers: 0\n"), 0o600))

		_, err := loadConfig(bad, viper.New())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))

		v := viper.New()
		v.Set(flagWorkers, 2)
		cfg, err := loadConfig(bad, v)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Scanning.Workers)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := loadConfig(filepath.Join(dir, "absent.yaml"), viper.New())
		require.NoError(t, err)
		assert.Equal(t, config.BackendText, cfg.Scanning.Backend)
	})
}

func TestFinishRun(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		interrupt bool
	}{
		{"success", nil, false, false},
		{"degraded scan", errors.NewScanErrorWithTarget(errors.CodeScanFailed, "nmap exited with status 1", "10.0.0.1"), false, false},
		{"rejected target", errors.ErrInvalidTarget("-iL", "starts with '-'"), true, false},
		{"interrupted", errors.WrapScanError(errors.CodeCanceled, "Sweep canceled", context.Canceled), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, logs bytes.Buffer
			logger := logging.NewWithWriter(&logs, logging.Config{Level: logging.LevelInfo, Format: logging.FormatText})

			err := finishRun(report.New(&out), logger, "10.0.0.1", tt.err)
			if tt.wantErr {
				assert.Equal(t, tt.err, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.interrupt, strings.Contains(out.String(), "Scan interrupted."))
			if tt.err != nil {
				assert.Contains(t, logs.String(), "target=10.0.0.1")
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &scanning.TextBackend{}, newBackend(cfg, logging.NewNop(), nil))

	cfg.Scanning.Backend = config.BackendXML
	assert.IsType(t, &scanning.XMLBackend{}, newBackend(cfg, logging.NewNop(), nil))
}

func TestSetVersion(t *testing.T) {
	orig := rootCmd.Version
	defer func() { rootCmd.Version = orig }()

	SetVersion("1.2.3", "abc123", "2024-03-01")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2024-03-01)", rootCmd.Version)
}

func TestRootCommandWithFailingNmap(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false(1) not available")
	}

	dir := t.TempDir()
	logFile := filepath.Join(dir, "scan.log")
	metricsFile := filepath.Join(dir, "anscanner.prom")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("10.0.0.1:22\n"))
	rootCmd.SetArgs([]string{
		"--nmap-path", "false",
		"--log-file", logFile,
		"--metrics-file", metricsFile,
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	stdout := out.String()
	assert.Contains(t, stdout, targetPrompt)
	assert.Contains(t, stdout, "Scanning... Please wait...")
	assert.Contains(t, stdout, "Error during Nmap scan")
	assert.Contains(t, stdout, "No active hosts found.")

	logData, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "run_id=")
	assert.Contains(t, string(logData), "address=10.0.0.1")

	metricsData, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsData), `anscanner_scan_invocations_total{mode="discovery",status="error"} 1`)
}

func TestRootCommandSaveConfig(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "saved.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--save-config", target, "--workers", "6"})
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set(flagSaveConfig, "")
		_ = rootCmd.PersistentFlags().Set(flagWorkers, "1")
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Configuration written to "+target)

	saved, err := config.Load(target)
	require.NoError(t, err)
	assert.Equal(t, 6, saved.Scanning.Workers)
}
