package service

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/pushgate/pushgate/server/pushgate"
)

type reapJob struct {
	variantID string
	endpoints []string
}

// Reaper removes installations whose endpoints a push provider reported
// invalid. Jobs run detached from the dispatch that produced them: the
// dispatch outcome never waits on, or reflects, the result of the cleanup.
// Deleting an endpoint twice is harmless, so redundant jobs for the same
// endpoints are fine.
type Reaper struct {
	ds      pushgate.Datastore
	logger  log.Logger
	metrics *Metrics

	jobs chan reapJob
	wg   sync.WaitGroup

	mtx    sync.Mutex
	closed bool
}

// ReaperOption configures a Reaper.
type ReaperOption func(*reaperOptions)

type reaperOptions struct {
	workers   int
	queueSize int
	metrics   *Metrics
}

// WithReaperWorkers sets the number of goroutines draining the job queue.
func WithReaperWorkers(n int) ReaperOption {
	return func(o *reaperOptions) {
		o.workers = n
	}
}

// WithReaperQueueSize sets the capacity of the job queue.
func WithReaperQueueSize(n int) ReaperOption {
	return func(o *reaperOptions) {
		o.queueSize = n
	}
}

// WithReaperMetrics sets the metrics recorder used by the reaper.
func WithReaperMetrics(m *Metrics) ReaperOption {
	return func(o *reaperOptions) {
		o.metrics = m
	}
}

// NewReaper creates a Reaper and starts its workers.
func NewReaper(ds pushgate.Datastore, logger log.Logger, opts ...ReaperOption) *Reaper {
	options := &reaperOptions{
		workers:   2,
		queueSize: 64,
		metrics:   NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(options)
	}

	r := &Reaper{
		ds:      ds,
		logger:  logger,
		metrics: options.metrics,
		jobs:    make(chan reapJob, options.queueSize),
	}
	for i := 0; i < options.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for job := range r.jobs {
				r.process(job)
			}
		}()
	}
	return r
}

// Enqueue schedules removal of the given endpoints of a variant. It never
// blocks the caller: when the queue is full the job runs on its own
// goroutine instead.
func (r *Reaper) Enqueue(variantID string, endpoints []string) {
	if len(endpoints) == 0 {
		return
	}
	job := reapJob{variantID: variantID, endpoints: endpoints}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.closed {
		r.process(job)
		return
	}

	select {
	case r.jobs <- job:
	default:
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.process(job)
		}()
	}
}

func (r *Reaper) process(job reapJob) {
	deleted, err := r.ds.DeleteInstallationsByEndpoints(context.Background(), job.variantID, job.endpoints)
	if err != nil {
		// Cleanup failure never propagates to the dispatch caller. A stale
		// endpoint is reported by the provider again on the next dispatch, so
		// this retries naturally.
		r.metrics.ReapFailures.Inc()
		level.Error(r.logger).Log(
			"msg", "reaping invalid endpoints failed",
			"variant_id", job.variantID,
			"endpoints", len(job.endpoints),
			"err", err,
		)
		return
	}
	r.metrics.ReapedInstallations.Add(float64(deleted))
	level.Debug(r.logger).Log(
		"msg", "reaped invalid endpoints",
		"variant_id", job.variantID,
		"reported", len(job.endpoints),
		"deleted", deleted,
	)
}

// Close drains outstanding jobs and stops the workers. Enqueue after Close
// processes synchronously.
func (r *Reaper) Close() {
	r.mtx.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mtx.Unlock()
	r.wg.Wait()
}
