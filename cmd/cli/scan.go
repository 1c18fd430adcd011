package cli

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/anscanner/internal/config"
	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
	"github.com/anstrom/anscanner/internal/metrics"
	"github.com/anstrom/anscanner/internal/report"
	"github.com/anstrom/anscanner/internal/resolver"
	"github.com/anstrom/anscanner/internal/scanning"
	"github.com/anstrom/anscanner/internal/sweep"
)

const targetPrompt = "Enter the IP range or domain (e.g., IP or example.com): "

// runScan is the root command action.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile, viper.GetViper())
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString(flagSaveConfig); path != "" {
		if err := cfg.Save(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return errors.WrapConfigError(errors.CodeFilePermission, "failed to open log output", err)
	}
	defer func() { _ = logger.Close() }()

	runID := uuid.NewString()
	logger = logger.WithRunID(runID)

	rep := report.New(cmd.OutOrStdout())
	rep.Banner()

	target := ""
	if len(args) > 0 {
		target = args[0]
	} else {
		target, err = readTarget(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return errors.WrapScanError(errors.CodeTargetInvalid, "failed to read target", err)
		}
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	pipeline := newPipeline(cfg, rep, logger, m)

	logger.Info("Run started",
		"target", target,
		"backend", cfg.Scanning.Backend,
		"workers", cfg.Scanning.Workers,
		"version", version)

	_, runErr := pipeline.Run(ctx, target)
	runErr = finishRun(rep, logger, target, runErr)

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			logger.Error("Failed to write metrics textfile", "path", path, "error", err)
			rep.Warn("Could not write metrics to %s: %v", path, err)
		}
	}

	return runErr
}

// finishRun decides the exit path of a run. Fatal errors are returned, the
// rest were already reported and only leave a log line.
func finishRun(rep *report.Reporter, logger *logging.Logger, target string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.IsFatal(err) {
		logger.WithError(err).Warn("Run degraded", "target", target)
		return nil
	}

	logger.WithError(err).Error("Run aborted", "target", target)
	if errors.IsCode(err, errors.CodeCanceled) {
		rep.Warn("Scan interrupted.")
	}
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newPipeline builds the resolver, backend and sweep pipeline for cfg.
func newPipeline(cfg *config.Config, rep *report.Reporter, logger *logging.Logger, m *metrics.Metrics) *sweep.Pipeline {
	var lookup resolver.Lookuper
	if cfg.Scanning.DNSServer != "" {
		lookup = resolver.NewDNSLookuper(cfg.Scanning.DNSServer)
	}
	res := resolver.New(lookup, logger, resolver.WithStrict(cfg.Scanning.Strict))

	return sweep.New(res, newBackend(cfg, logger, m), rep, logger, m, sweep.Config{
		Workers:   cfg.Scanning.Workers,
		RateLimit: cfg.Scanning.RateLimit,
	})
}

func newBackend(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) scanning.Backend {
	sc := cfg.Scanning
	if cfg.UsesXMLBackend() {
		return scanning.NewXMLBackend(sc.NmapPath, sc.CommandTimeout, logger, m)
	}
	inv := scanning.NewInvoker(scanning.ExecRunner{}, sc.NmapPath, sc.CommandTimeout, logger, m)
	return scanning.NewTextBackend(inv)
}

// loadConfig reads the config file and overlays flags and environment
// variables that were explicitly set.
func loadConfig(path string, v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to load configuration", err)
	}

	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	sc := &cfg.Scanning
	if v.IsSet(flagNmapPath) {
		sc.NmapPath = v.GetString(flagNmapPath)
	}
	if v.IsSet(flagBackend) {
		sc.Backend = v.GetString(flagBackend)
	}
	if v.IsSet(flagTimeout) {
		sc.CommandTimeout = v.GetDuration(flagTimeout)
	}
	if v.IsSet(flagWorkers) {
		sc.Workers = v.GetInt(flagWorkers)
	}
	if v.IsSet(flagRateLimit) {
		sc.RateLimit = v.GetFloat64(flagRateLimit)
	}
	if v.IsSet(flagStrict) {
		sc.Strict = v.GetBool(flagStrict)
	}
	if v.IsSet(flagDNSServer) {
		sc.DNSServer = v.GetString(flagDNSServer)
	}

	if v.IsSet(flagLogFile) {
		cfg.Logging.Output = v.GetString(flagLogFile)
	}
	if v.IsSet(flagLogLevel) {
		cfg.Logging.Level = logging.LogLevel(v.GetString(flagLogLevel))
	}
	if v.IsSet(flagLogFormat) {
		cfg.Logging.Format = logging.LogFormat(v.GetString(flagLogFormat))
	}
	if v.GetBool(flagVerbose) {
		cfg.Logging.Level = logging.LevelDebug
	}

	if v.IsSet(flagMetricsFile) {
		cfg.Metrics.TextfilePath = v.GetString(flagMetricsFile)
	}
}

// readTarget prompts for a target and reads one line from in.
func readTarget(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, targetPrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(stderrors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
