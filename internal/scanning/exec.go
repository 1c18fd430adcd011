package scanning

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
	"github.com/anstrom/anscanner/internal/metrics"
)

const (
	// DefaultBinary is looked up on PATH when no nmap path is configured.
	DefaultBinary = "nmap"

	// DefaultTimeout bounds a single nmap invocation.
	DefaultTimeout = 5 * time.Minute

	// maxOutputExcerpt caps the output attached to a failed invocation.
	maxOutputExcerpt = 256
)

// Runner executes a program and returns its combined stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs as subprocesses. The process is killed when ctx
// is done.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Invoker builds nmap argument vectors for the three scan modes and runs
// them with a per-invocation timeout.
type Invoker struct {
	runner  Runner
	binary  string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewInvoker creates an Invoker. Zero values select ExecRunner, DefaultBinary
// and DefaultTimeout. A nil metrics records nothing.
func NewInvoker(runner Runner, binary string, timeout time.Duration,
	logger *logging.Logger, m *metrics.Metrics) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{
		runner:  runner,
		binary:  binary,
		timeout: timeout,
		logger:  logger.WithComponent("invoker"),
		metrics: m,
	}
}

// DiscoveryArgs returns the ping sweep arguments for addr.
func DiscoveryArgs(addr string) []string {
	return []string{"-sn", addr}
}

// PortArgs returns the TCP port scan arguments for host.
func PortArgs(host string) []string {
	return []string{"-p", PortRange, host}
}

// OSArgs returns the OS fingerprinting arguments for host.
func OSArgs(host string) []string {
	return []string{"-O", host}
}

// Discover runs a ping sweep of addr.
func (i *Invoker) Discover(ctx context.Context, addr string) (string, error) {
	return i.run(ctx, metrics.ModeDiscovery, addr, DiscoveryArgs(addr))
}

// ScanPorts runs a port scan of host.
func (i *Invoker) ScanPorts(ctx context.Context, host string) (string, error) {
	return i.run(ctx, metrics.ModePorts, host, PortArgs(host))
}

// DetectOS runs OS fingerprinting against host.
func (i *Invoker) DetectOS(ctx context.Context, host string) (string, error) {
	return i.run(ctx, metrics.ModeOS, host, OSArgs(host))
}

func (i *Invoker) run(ctx context.Context, mode, target string, args []string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	i.logger.Debug("Running nmap",
		"mode", mode,
		"target", target,
		"args", strings.Join(args, " "))

	start := time.Now()
	out, err := i.runner.Run(runCtx, i.binary, args...)
	duration := time.Since(start)

	if err != nil {
		scanErr := i.classify(ctx, runCtx, mode, target, out, err)
		status := metrics.StatusError
		if errors.IsCode(scanErr, errors.CodeTimeout) {
			status = metrics.StatusTimeout
		}
		i.metrics.RecordScan(mode, status, duration)
		i.logger.Debug("nmap invocation failed",
			"mode", mode,
			"target", target,
			"duration", duration,
			"error", scanErr)
		return "", scanErr
	}

	i.metrics.RecordScan(mode, metrics.StatusSuccess, duration)
	i.logger.Debug("nmap invocation completed",
		"mode", mode,
		"target", target,
		"duration", duration,
		"output_bytes", len(out))
	return string(out), nil
}

// classify maps a failed invocation onto a coded error. Context state is
// checked first since a killed process also reports a non-zero exit.
func (i *Invoker) classify(parent, runCtx context.Context, mode, target string,
	out []byte, err error) *errors.ScanError {
	op := "nmap " + mode

	switch {
	case parent.Err() != nil:
		return errors.WrapScanErrorWithTarget(errors.CodeCanceled,
			"Scan canceled", target, parent.Err()).WithOperation(op)
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded):
		return errors.WrapScanErrorWithTarget(errors.CodeTimeout,
			fmt.Sprintf("Scan exceeded %s", i.timeout), target, err).WithOperation(op)
	case stderrors.Is(err, exec.ErrNotFound), stderrors.Is(err, os.ErrNotExist):
		return errors.WrapScanErrorWithTarget(errors.CodeToolNotFound,
			"nmap binary not found", target, err).
			WithOperation(op).
			WithContext("binary", i.binary)
	case stderrors.Is(err, os.ErrPermission):
		return errors.WrapScanErrorWithTarget(errors.CodePermission,
			"Permission denied running nmap", target, err).
			WithOperation(op).
			WithContext("binary", i.binary)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.WrapScanErrorWithTarget(errors.CodeScanFailed,
			fmt.Sprintf("nmap exited with status %d", exitErr.ExitCode()), target, err).
			WithOperation(op).
			WithContext("exit_code", exitErr.ExitCode()).
			WithContext("output", excerpt(out))
	}

	return errors.WrapScanErrorWithTarget(errors.CodeScanFailed,
		"nmap could not be run", target, err).WithOperation(op)
}

func excerpt(out []byte) string {
	out = bytes.TrimSpace(out)
	if len(out) > maxOutputExcerpt {
		out = out[:maxOutputExcerpt]
	}
	return string(out)
}
