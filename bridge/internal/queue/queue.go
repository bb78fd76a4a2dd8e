// Package queue accepts events for asynchronous delivery and dispatches them
// to the sink under a shared rate limit, retrying failures with backoff.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telhawk-systems/relay-stack/bridge/internal/dlq"
	"github.com/telhawk-systems/relay-stack/bridge/internal/metrics"
	"github.com/telhawk-systems/relay-stack/bridge/internal/ratelimit"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
	"github.com/telhawk-systems/relay-stack/common/telemetry"
)

const tracerName = "relay-stack/bridge/queue"

// Dispatcher performs one delivery attempt.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.Event) error
}

// Config tunes the queue. Zero fields take the DefaultConfig value.
type Config struct {
	MaxAttempts  int
	RateLimit    int
	RateWindow   time.Duration
	RateKey      string
	Backoff      Backoff
	Capacity     int
	MaxInFlight  int
	PollInterval time.Duration
	RetentionTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		RateLimit:    5,
		RateWindow:   time.Second,
		RateKey:      "sink",
		Backoff:      Backoff{Type: BackoffExponential, Delay: time.Second, Max: 30 * time.Second},
		Capacity:     10000,
		MaxInFlight:  5,
		PollInterval: 25 * time.Millisecond,
		RetentionTTL: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	if c.RateKey == "" {
		c.RateKey = d.RateKey
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = d.Backoff
	} else if c.Backoff.Type == "" {
		c.Backoff.Type = d.Backoff.Type
	}
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RetentionTTL <= 0 {
		c.RetentionTTL = d.RetentionTTL
	}
	return c
}

// Stats is a point-in-time summary of the queue.
type Stats struct {
	Capacity        int    `json:"capacity"`
	Depth           int    `json:"depth"`
	Pending         int    `json:"pending"`
	InFlight        int    `json:"inFlight"`
	Tracked         int    `json:"tracked"`
	Accepted        uint64 `json:"accepted"`
	Delivered       uint64 `json:"delivered"`
	FailedExhausted uint64 `json:"failedExhausted"`
	Retries         uint64 `json:"retries"`
}

// Queue is an in-memory delivery queue. Jobs are lost on restart.
type Queue struct {
	cfg        Config
	dispatcher Dispatcher
	limiter    ratelimit.RateLimiter
	dead       dlq.Writer
	logger     *logging.Logger
	now        func() time.Time

	work  chan string
	slots chan struct{}

	mu      sync.RWMutex
	jobs    map[string]*Job
	byEvent map[string]string

	accepted  atomic.Uint64
	delivered atomic.Uint64
	exhausted atomic.Uint64
	retries   atomic.Uint64

	stopped   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	stopCh    chan struct{}
	loopDone  chan struct{}
	wg        sync.WaitGroup
}

// New creates a queue. A nil limiter is replaced by an in-memory limiter
// enforcing cfg.RateLimit per cfg.RateWindow. deadLetters may be nil, in
// which case exhausted jobs are only logged.
func New(cfg Config, dispatcher Dispatcher, limiter ratelimit.RateLimiter, deadLetters dlq.Writer, logger *logging.Logger) *Queue {
	cfg = cfg.withDefaults()
	if limiter == nil {
		limiter = localLimiter(cfg)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	metrics.QueueCapacity.Set(float64(cfg.Capacity))

	return &Queue{
		cfg:        cfg,
		dispatcher: dispatcher,
		limiter:    limiter,
		dead:       deadLetters,
		logger:     logger.With(logging.Service("delivery-queue")),
		now:        time.Now,
		work:       make(chan string, cfg.Capacity),
		slots:      make(chan struct{}, cfg.MaxInFlight),
		jobs:       make(map[string]*Job),
		byEvent:    make(map[string]string),
		started:    make(chan struct{}),
		stopCh:     make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// localLimiter builds the per-process limiter used when New is given none.
// withDefaults leaves RateLimit and RateWindow positive, so construction
// cannot fail.
func localLimiter(cfg Config) ratelimit.RateLimiter {
	limiter, err := ratelimit.NewMemoryRateLimiter(cfg.RateLimit, cfg.RateWindow)
	if err != nil {
		panic("queue: " + err.Error())
	}
	return limiter
}

// Accept records event as a pending job and enqueues it. The request ID in
// ctx travels with the job to every dispatch attempt.
func (q *Queue) Accept(ctx context.Context, event models.Event) (Job, error) {
	if q.stopped.Load() {
		metrics.JobsRejected.WithLabelValues("stopped").Inc()
		return Job{}, ErrQueueStopped
	}

	now := q.now()
	job := &Job{
		ID:        uuid.New().String(),
		Event:     event,
		RequestID: middleware.GetRequestID(ctx),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	previous, hadPrevious := q.byEvent[event.ID]
	q.byEvent[event.ID] = job.ID
	snapshot := *job
	q.mu.Unlock()

	select {
	case q.work <- job.ID:
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		if hadPrevious {
			q.byEvent[event.ID] = previous
		} else {
			delete(q.byEvent, event.ID)
		}
		q.mu.Unlock()
		metrics.JobsRejected.WithLabelValues("full").Inc()
		return Job{}, ErrQueueFull
	}

	q.accepted.Add(1)
	metrics.JobsAccepted.Inc()
	metrics.QueueDepth.Set(float64(len(q.work)))
	q.logger.DebugContext(ctx, "job accepted", logging.JobID(job.ID), logging.EventID(event.ID))
	return snapshot, nil
}

// Start launches the dispatcher and cleanup loops. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		go func() {
			<-q.stopCh
			cancel()
		}()
		close(q.started)
		go q.run(loopCtx)
		go q.cleanupLoop(loopCtx)
		q.logger.Info("delivery queue started",
			"max_attempts", q.cfg.MaxAttempts,
			"rate_limit", q.cfg.RateLimit,
			"rate_window", q.cfg.RateWindow.String(),
			"max_in_flight", q.cfg.MaxInFlight,
			"capacity", q.cfg.Capacity)
	})
}

// Stop refuses new jobs, stops the dispatcher loop and waits for in-flight
// attempts to finish. Jobs still waiting are abandoned.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.stopped.Store(true)
		close(q.stopCh)

		select {
		case <-q.started:
			<-q.loopDone
		default:
		}
		q.wg.Wait()

		q.logger.Info("delivery queue stopped", "abandoned", len(q.work))
	})
}

// Get returns a snapshot of the job.
func (q *Queue) Get(jobID string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// LatestForEvent returns the most recently accepted job for an event ID.
func (q *Queue) LatestForEvent(eventID string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	jobID, ok := q.byEvent[eventID]
	if !ok {
		return Job{}, false
	}
	job, ok := q.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (q *Queue) Stats() Stats {
	s := Stats{
		Capacity:        q.cfg.Capacity,
		Depth:           len(q.work),
		Accepted:        q.accepted.Load(),
		Delivered:       q.delivered.Load(),
		FailedExhausted: q.exhausted.Load(),
		Retries:         q.retries.Load(),
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	s.Tracked = len(q.jobs)
	for _, job := range q.jobs {
		switch job.Status {
		case StatusPending:
			s.Pending++
		case StatusInFlight:
			s.InFlight++
		}
	}
	return s
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.loopDone)

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.work:
			metrics.QueueDepth.Set(float64(len(q.work)))

			// The in-flight slot is taken before the rate slot so that a
			// granted slot is always used immediately.
			if !q.acquireSlot(ctx) {
				q.requeueOnShutdown(id)
				return
			}
			if err := q.waitForRateSlot(ctx); err != nil {
				q.releaseSlot()
				q.requeueOnShutdown(id)
				return
			}

			job, ok := q.markInFlight(id)
			if !ok {
				q.releaseSlot()
				continue
			}

			q.wg.Add(1)
			go q.attempt(ctx, job)
		}
	}
}

func (q *Queue) acquireSlot(ctx context.Context) bool {
	select {
	case q.slots <- struct{}{}:
		metrics.JobsInFlight.Set(float64(len(q.slots)))
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *Queue) releaseSlot() {
	<-q.slots
	metrics.JobsInFlight.Set(float64(len(q.slots)))
}

// waitForRateSlot polls the limiter until it grants a slot. A limiter error
// counts as a full window.
func (q *Queue) waitForRateSlot(ctx context.Context) error {
	failing := false
	for {
		allowed, err := q.limiter.Allow(ctx, q.cfg.RateKey)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RateLimitErrors.Inc()
			if !failing {
				q.logger.Warn("rate limiter unavailable, holding dispatch", logging.Error(err))
				failing = true
			}
		} else if allowed {
			if failing {
				q.logger.Info("rate limiter recovered")
			}
			return nil
		}

		metrics.RateLimitWaits.Inc()
		timer := time.NewTimer(q.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// requeueOnShutdown puts a dequeued job back so Stats reports it as waiting.
func (q *Queue) requeueOnShutdown(id string) {
	select {
	case q.work <- id:
	default:
	}
}

func (q *Queue) markInFlight(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		return Job{}, false
	}
	job.Attempts++
	job.Status = StatusInFlight
	job.UpdatedAt = q.now()
	return *job, true
}

func (q *Queue) attempt(ctx context.Context, job Job) {
	defer q.wg.Done()
	defer q.releaseSlot()

	// In-flight attempts outlive Stop; the dispatcher bounds them with its
	// own timeout.
	dctx := middleware.WithRequestID(context.WithoutCancel(ctx), job.RequestID)
	dctx, span := telemetry.Tracer(tracerName).Start(dctx, "queue.dispatch",
		trace.WithAttributes(
			attribute.String("relay.job_id", job.ID),
			attribute.String("relay.event_id", job.Event.ID),
			attribute.Int("relay.attempt", job.Attempts),
		))
	defer span.End()

	start := time.Now()
	err := q.dispatcher.Dispatch(dctx, job.Event)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DispatchAttempts.WithLabelValues("failure").Inc()
	} else {
		metrics.DispatchAttempts.WithLabelValues("success").Inc()
	}

	q.complete(dctx, job.ID, err)
}

func (q *Queue) complete(ctx context.Context, id string, dispatchErr error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.UpdatedAt = q.now()

	if dispatchErr == nil {
		job.Status = StatusDelivered
		job.LastError = ""
		snapshot := *job
		q.mu.Unlock()

		q.delivered.Add(1)
		metrics.JobsCompleted.WithLabelValues(string(StatusDelivered)).Inc()
		q.logger.InfoContext(ctx, "event delivered",
			logging.JobID(snapshot.ID),
			logging.EventID(snapshot.Event.ID),
			logging.Attempt(snapshot.Attempts))
		return
	}

	job.LastError = dispatchErr.Error()
	if job.Attempts >= q.cfg.MaxAttempts {
		job.Status = StatusFailedExhausted
		snapshot := *job
		q.mu.Unlock()
		q.exhaust(ctx, snapshot, dispatchErr)
		return
	}

	job.Status = StatusPending
	snapshot := *job
	q.mu.Unlock()

	delay := q.cfg.Backoff.Next(snapshot.Attempts)
	q.retries.Add(1)
	metrics.Retries.Inc()
	q.logger.WarnContext(ctx, "dispatch failed, retrying",
		logging.JobID(snapshot.ID),
		logging.EventID(snapshot.Event.ID),
		logging.Attempt(snapshot.Attempts),
		"retry_in_ms", delay.Milliseconds(),
		logging.Error(dispatchErr))

	q.scheduleRetry(snapshot.ID, delay)
}

func (q *Queue) scheduleRetry(id string, delay time.Duration) {
	if q.stopped.Load() {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.stopCh:
			return
		case <-timer.C:
		}

		select {
		case q.work <- id:
			metrics.QueueDepth.Set(float64(len(q.work)))
		case <-q.stopCh:
		}
	}()
}

func (q *Queue) exhaust(ctx context.Context, job Job, last error) {
	q.exhausted.Add(1)
	metrics.JobsCompleted.WithLabelValues(string(StatusFailedExhausted)).Inc()

	exhausted := &ExhaustedError{
		JobID:    job.ID,
		EventID:  job.Event.ID,
		Attempts: job.Attempts,
		Last:     last,
	}
	q.logger.ErrorContext(ctx, "delivery failed permanently",
		logging.JobID(job.ID),
		logging.EventID(job.Event.ID),
		logging.Attempt(job.Attempts),
		logging.Error(exhausted))

	if q.dead == nil {
		return
	}

	failed := dlq.FailedEvent{
		Timestamp:   job.CreatedAt,
		JobID:       job.ID,
		RequestID:   job.RequestID,
		Event:       job.Event,
		Attempts:    job.Attempts,
		Error:       job.LastError,
		Reason:      dlq.ReasonRetriesExhausted,
		LastAttempt: job.UpdatedAt,
	}
	if err := q.dead.Write(ctx, failed); err != nil {
		metrics.DLQWrites.WithLabelValues("error").Inc()
		q.logger.ErrorContext(ctx, "failed to write dead letter",
			logging.JobID(job.ID), logging.Error(err))
		return
	}
	metrics.DLQWrites.WithLabelValues("success").Inc()
}

// cleanupLoop forgets terminal jobs older than RetentionTTL.
func (q *Queue) cleanupLoop(ctx context.Context) {
	interval := q.cfg.RetentionTTL / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := q.prune(); removed > 0 {
				q.logger.Debug("pruned finished jobs", "count", removed)
			}
		}
	}
}

func (q *Queue) prune() int {
	cutoff := q.now().Add(-q.cfg.RetentionTTL)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if !job.Status.Terminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		delete(q.jobs, id)
		if q.byEvent[job.Event.ID] == id {
			delete(q.byEvent, job.Event.ID)
		}
		removed++
	}
	return removed
}

// IsRejection reports whether err is an admission error from Accept.
func IsRejection(err error) bool {
	return errors.Is(err, ErrQueueStopped) || errors.Is(err, ErrQueueFull)
}
