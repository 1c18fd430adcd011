// Package workers provides a bounded worker pool for the per-host phase of a
// sweep. It supports job queuing with back-pressure, context cancellation and
// graceful shutdown, and reports job outcomes on a results channel.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/anscanner/internal/logging"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the number of jobs buffered ahead of the workers.
	QueueSize int
}

// Pool manages a pool of worker goroutines for concurrent job execution.
type Pool struct {
	config    Config
	logger    *logging.Logger
	jobs      chan Job
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a new worker pool with the given configuration.
func New(config Config, logger *logging.Logger) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Pool{
		config:  config,
		logger:  logger.WithComponent("workers"),
		jobs:    make(chan Job, config.QueueSize),
		results: make(chan Result, config.QueueSize+config.Size),
	}
}

// Start launches the workers. Cancelling ctx stops workers after their
// current job.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)

		p.logger.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}

		go func() {
			p.wg.Wait()
			close(p.results)
		}()
	})
}

// Submit queues a job, blocking while the queue is full. It must not race
// with Shutdown.
func (p *Pool) Submit(job Job) error {
	if p.ctx == nil {
		return fmt.Errorf("worker pool is not started")
	}
	if p.closed.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		p.logger.Debug("Job submitted to worker pool",
			"job_id", job.ID(),
			"job_type", job.Type())
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the channel of job results. It is closed once every
// worker has exited after Shutdown.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting jobs. Queued jobs still run. It does not wait;
// drain Results to observe completion.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
		p.logger.Debug("Worker pool closed for submissions")
	})
}

// Stop cancels in-flight work and shuts the pool down.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.Shutdown()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(id, job)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) execute(workerID int, job Job) {
	start := time.Now()
	err := job.Execute(p.ctx)
	duration := time.Since(start)

	if err != nil {
		p.logger.Warn("Job failed",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"worker_id", workerID,
			"error", err)
	}

	p.results <- Result{
		JobID:    job.ID(),
		JobType:  job.Type(),
		Error:    err,
		Duration: duration,
	}
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	id      string
	jobType string
	fn      func(ctx context.Context) error
}

// NewFuncJob creates a job that runs fn.
func NewFuncJob(id, jobType string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{id: id, jobType: jobType, fn: fn}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *FuncJob) Type() string {
	return j.jobType
}
