// Package sweep runs one anscanner pass over a target: resolve it, discover
// live hosts one address at a time, then collect open ports and the OS
// fingerprint of every live host and present the table.
package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/anscanner/internal/errors"
	"github.com/anstrom/anscanner/internal/logging"
	"github.com/anstrom/anscanner/internal/metrics"
	"github.com/anstrom/anscanner/internal/report"
	"github.com/anstrom/anscanner/internal/resolver"
	"github.com/anstrom/anscanner/internal/scanning"
	"github.com/anstrom/anscanner/internal/workers"
)

const (
	jobTypeHost = "host"

	msgStarting = "Scanning... Please wait..."
	msgFallback = "Invalid domain name. Scanning local IP range instead..."
)

// Config tunes a Pipeline.
type Config struct {
	// Workers bounds the per-host port and OS phase. 1 runs hosts in order.
	Workers int
	// RateLimit caps discovery launches per second. 0 means unlimited.
	RateLimit float64
}

// Pipeline wires the resolver, a scan backend and the reporter together.
type Pipeline struct {
	resolver *resolver.Resolver
	backend  scanning.Backend
	reporter *report.Reporter
	logger   *logging.Logger
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	workers  int
}

// New creates a Pipeline. logger and m may be nil.
func New(res *resolver.Resolver, backend scanning.Backend, rep *report.Reporter,
	logger *logging.Logger, m *metrics.Metrics, cfg Config) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Pipeline{
		resolver: res,
		backend:  backend,
		reporter: rep,
		logger:   logger.WithComponent("sweep"),
		metrics:  m,
		limiter:  newLimiter(cfg.RateLimit),
		workers:  cfg.Workers,
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Run sweeps target and presents the result. Scan failures are reported and
// degrade to empty results; only an unusable target or cancellation is
// returned as an error.
func (p *Pipeline) Run(ctx context.Context, target string) ([]scanning.Record, error) {
	start := time.Now()
	p.reporter.Info(msgStarting)

	res, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	log := p.logger.WithTarget(res.Host)
	if res.Fallback {
		p.metrics.IncFallback()
		p.reporter.Warn(msgFallback)
		log.WithError(res.Cause).Info("Sweeping fallback range", "prefix", res.Host)
	}

	log.Info("Sweep started",
		"addresses", len(res.Addresses),
		"fallback", res.Fallback)

	hosts, err := p.discover(ctx, log, res.Addresses)
	if err != nil {
		return nil, err
	}

	if len(hosts) == 0 {
		p.reporter.NoHosts()
		log.Info("Sweep completed", "hosts", 0, "duration", time.Since(start))
		return nil, nil
	}

	p.reporter.Summary(len(hosts))

	records, err := p.scanHosts(ctx, log, hosts)
	if err != nil {
		return nil, err
	}

	if err := p.reporter.Table(report.BuildRows(records)); err != nil {
		log.WithError(err).Error("Failed to render results")
	}

	log.Info("Sweep completed",
		"hosts", len(records),
		"duration", time.Since(start))
	return records, nil
}

// discover probes each address in order, advancing the progress bar once per
// address.
func (p *Pipeline) discover(ctx context.Context, log *logging.Logger, addrs []string) ([]string, error) {
	p.reporter.StartProgress(len(addrs))
	defer p.reporter.FinishProgress()

	var hosts []string
	for _, addr := range addrs {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, canceled(ctx, err)
		}

		found, err := p.backend.Discover(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx, err)
			}
			p.reporter.Error("Error during Nmap scan: %v", err)
			log.ErrorDiscovery("Discovery failed", addr, err)
			found = nil
		}

		if len(found) > 0 {
			log.InfoDiscovery("Hosts discovered", addr, "hosts", found)
		}
		p.metrics.AddHostsDiscovered(len(found))
		hosts = append(hosts, found...)
		p.reporter.Advance()
	}
	return hosts, nil
}

// scanHosts runs the port and OS phase on the worker pool. Records keep the
// discovery order regardless of completion order.
func (p *Pipeline) scanHosts(ctx context.Context, log *logging.Logger, hosts []string) ([]scanning.Record, error) {
	records := make([]scanning.Record, len(hosts))

	pool := workers.New(workers.Config{Size: p.workers, QueueSize: len(hosts)}, log)
	pool.Start(ctx)

	for i, host := range hosts {
		job := workers.NewFuncJob(fmt.Sprintf("%d-%s", i, host), jobTypeHost, func(ctx context.Context) error {
			rec, err := p.scanHost(ctx, log, host)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
		if err := pool.Submit(job); err != nil {
			pool.Stop()
			drain(log, pool)
			return nil, canceled(ctx, err)
		}
	}
	pool.Shutdown()
	drain(log, pool)

	if ctx.Err() != nil {
		return nil, canceled(ctx, ctx.Err())
	}
	return records, nil
}

// scanHost builds the record for one live host. Only cancellation is
// returned as an error.
func (p *Pipeline) scanHost(ctx context.Context, log *logging.Logger, host string) (scanning.Record, error) {
	ports, err := p.backend.ScanPorts(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return scanning.Record{}, err
		}
		p.reporter.Error("Error scanning %s: %v", host, err)
		log.ErrorScan("Port scan failed", host, err)
		ports = nil
	}

	osName, err := p.backend.DetectOS(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return scanning.Record{}, err
		}
		log.WithError(err).Debug("OS detection failed", "host", host)
		osName = scanning.UnknownOS
	}

	p.metrics.AddOpenPorts(len(ports))
	rec := scanning.NewRecord(host, ports, osName)
	log.InfoScan("Host scanned", host,
		"open_ports", len(rec.Ports),
		"os", rec.OS)
	return rec, nil
}

// drain waits for every worker to exit.
func drain(log *logging.Logger, pool *workers.Pool) {
	for res := range pool.Results() {
		log.Debug("Host job finished",
			"job_id", res.JobID,
			"duration", res.Duration)
	}
}

func canceled(ctx context.Context, err error) error {
	if errors.IsCode(err, errors.CodeCanceled) {
		return err
	}
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return errors.WrapScanError(errors.CodeCanceled, "Sweep canceled", cause)
}
