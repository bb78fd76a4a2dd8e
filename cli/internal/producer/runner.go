package producer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/telhawk-systems/relay-stack/cli/internal/client"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/models"
)

// Sender submits one event. *client.BridgeClient satisfies it.
type Sender interface {
	SendEvent(ctx context.Context, event models.Event) (*client.Ack, error)
}

type Config struct {
	Count       int
	Interval    time.Duration
	Concurrency int
	Seed        int64
}

// Summary counts outcomes of a run. Failures are keyed by HTTP status, with
// 0 for transport errors.
type Summary struct {
	Sent     int           `json:"sent"`
	Accepted int           `json:"accepted"`
	Failed   int           `json:"failed"`
	ByStatus map[int]int   `json:"failuresByStatus,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

type Runner struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
}

func NewRunner(cfg Config, sender Sender, logger *slog.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, sender: sender, logger: logger}
}

// Run sends cfg.Count events, starting one per Interval with at most
// Concurrency in flight. Failed sends are counted, not retried; the bridge
// owns retries once an event is accepted. Run stops early if ctx ends.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	limit := rate.Inf
	if r.cfg.Interval > 0 {
		limit = rate.Every(r.cfg.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	gen := NewGenerator(r.cfg.Seed)

	var (
		accepted atomic.Int64
		mu       sync.Mutex
		byStatus = make(map[int]int)
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	sent := 0
	for ; sent < r.cfg.Count; sent++ {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		event := gen.Next()
		g.Go(func() error {
			ack, err := r.sender.SendEvent(gctx, event)
			if err != nil {
				status := 0
				var apiErr *client.APIError
				if errors.As(err, &apiErr) {
					status = apiErr.StatusCode
				}
				mu.Lock()
				byStatus[status]++
				mu.Unlock()
				r.logger.Warn("event rejected", logging.EventID(event.ID), "name", event.Name, logging.Error(err))
				return nil
			}
			accepted.Add(1)
			r.logger.Info("event accepted", logging.EventID(ack.EventID), "name", event.Name)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Sent:     sent,
		Accepted: int(accepted.Load()),
		ByStatus: byStatus,
		Elapsed:  time.Since(start),
	}
	summary.Failed = summary.Sent - summary.Accepted
	if len(byStatus) == 0 {
		summary.ByStatus = nil
	}
	return summary, ctx.Err()
}
