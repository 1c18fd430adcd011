package scanning

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
	"github.com/anstrom/anscanner/internal/metrics"
)

const (
	hostStateUp   = "up"
	portStateOpen = "open"
	addrTypeIPv4  = "ipv4"
	protocolTCP   = "tcp"
)

// nmapRunFunc runs nmap with the given options and returns the decoded report.
type nmapRunFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error)

// XMLBackend drives nmap through github.com/Ullaakut/nmap/v3, reading the
// XML report instead of the text output.
type XMLBackend struct {
	binary  string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Metrics
	run     nmapRunFunc
}

// NewXMLBackend creates an XMLBackend. An empty binary is resolved from PATH
// by the nmap library.
func NewXMLBackend(binary string, timeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *XMLBackend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &XMLBackend{
		binary:  binary,
		timeout: timeout,
		logger:  logger.WithComponent("xml_backend"),
		metrics: m,
		run:     runNmap,
	}
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	result, warnings, err := scanner.Run()
	var w []string
	if warnings != nil {
		w = *warnings
	}
	return result, w, err
}

// Discover implements Backend.
func (b *XMLBackend) Discover(ctx context.Context, addr string) ([]string, error) {
	result, err := b.scan(ctx, metrics.ModeDiscovery, addr, nmap.WithPingScan())
	if err != nil {
		return nil, err
	}
	return hostsFromRun(result), nil
}

// ScanPorts implements Backend.
func (b *XMLBackend) ScanPorts(ctx context.Context, host string) ([]PortEntry, error) {
	result, err := b.scan(ctx, metrics.ModePorts, host, nmap.WithPorts(PortRange))
	if err != nil {
		return nil, err
	}

	var ports []PortEntry
	for i := range result.Hosts {
		ports = append(ports, portsFromHost(&result.Hosts[i])...)
	}
	return ports, nil
}

// DetectOS implements Backend.
func (b *XMLBackend) DetectOS(ctx context.Context, host string) (string, error) {
	result, err := b.scan(ctx, metrics.ModeOS, host, nmap.WithOSDetection())
	if err != nil {
		return UnknownOS, err
	}

	for i := range result.Hosts {
		if osName := osFromHost(&result.Hosts[i]); osName != UnknownOS {
			return osName, nil
		}
	}
	return UnknownOS, nil
}

func (b *XMLBackend) scan(ctx context.Context, mode, target string, modeOpt nmap.Option) (*nmap.Run, error) {
	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(target),
		modeOpt,
	}
	if b.binary != "" {
		opts = append(opts, nmap.WithBinaryPath(b.binary))
	}

	start := time.Now()
	result, warnings, err := b.run(runCtx, opts...)
	duration := time.Since(start)

	if len(warnings) > 0 {
		b.logger.Debug("nmap reported warnings",
			"mode", mode,
			"target", target,
			"warnings", warnings)
	}

	if err == nil && result == nil {
		err = fmt.Errorf("nmap returned no report")
	}
	if err != nil {
		scanErr := b.classify(ctx, runCtx, mode, target, err)
		status := metrics.StatusError
		if errors.IsCode(scanErr, errors.CodeTimeout) {
			status = metrics.StatusTimeout
		}
		b.metrics.RecordScan(mode, status, duration)
		return nil, scanErr
	}

	b.metrics.RecordScan(mode, metrics.StatusSuccess, duration)
	b.logger.Debug("nmap scan completed",
		"mode", mode,
		"target", target,
		"duration", duration,
		"hosts", len(result.Hosts))
	return result, nil
}

func (b *XMLBackend) classify(parent, runCtx context.Context, mode, target string, err error) *errors.ScanError {
	op := "nmap " + mode

	switch {
	case parent.Err() != nil:
		return errors.WrapScanErrorWithTarget(errors.CodeCanceled,
			"Scan canceled", target, parent.Err()).WithOperation(op)
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded), stderrors.Is(err, nmap.ErrScanTimeout):
		return errors.WrapScanErrorWithTarget(errors.CodeTimeout,
			fmt.Sprintf("Scan exceeded %s", b.timeout), target, err).WithOperation(op)
	case stderrors.Is(err, nmap.ErrNmapNotInstalled):
		return errors.WrapScanErrorWithTarget(errors.CodeToolNotFound,
			"nmap binary not found", target, err).WithOperation(op)
	case stderrors.Is(err, nmap.ErrRequiresRoot):
		return errors.WrapScanErrorWithTarget(errors.CodePermission,
			"nmap requires root privileges for this scan", target, err).WithOperation(op)
	default:
		return errors.WrapScanErrorWithTarget(errors.CodeScanFailed,
			"nmap scan failed", target, err).WithOperation(op)
	}
}

// hostsFromRun returns the address of every host reported up.
func hostsFromRun(result *nmap.Run) []string {
	var hosts []string
	for i := range result.Hosts {
		h := &result.Hosts[i]
		if h.Status.State != hostStateUp {
			continue
		}
		if addr := hostAddress(h); addr != "" {
			hosts = append(hosts, addr)
		}
	}
	return hosts
}

// hostAddress prefers the IPv4 address over MAC or IPv6 entries.
func hostAddress(h *nmap.Host) string {
	for _, a := range h.Addresses {
		if a.AddrType == addrTypeIPv4 {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return ""
}

func portsFromHost(h *nmap.Host) []PortEntry {
	var ports []PortEntry
	for j := range h.Ports {
		p := &h.Ports[j]
		if p.State.State != portStateOpen || (p.Protocol != "" && p.Protocol != protocolTCP) {
			continue
		}
		service := p.Service.Name
		if service == "" {
			service = UnknownService
		}
		ports = append(ports, PortEntry{Number: int(p.ID), Service: service})
	}
	return ports
}

// osFromHost returns the best OS match, which nmap lists first.
func osFromHost(h *nmap.Host) string {
	if len(h.OS.Matches) > 0 && h.OS.Matches[0].Name != "" {
		return h.OS.Matches[0].Name
	}
	return UnknownOS
}
