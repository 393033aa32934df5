package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dshills/prcritic/internal/providers"
)

// outcome is the terminal state of one unit. A unit with no recorded
// outcome when dispatch ends was skipped.
type outcome struct {
	done     bool
	failed   bool
	clean    bool
	findings []Finding
	err      error
}

// collector is the only mutable state shared by unit workers. Once sealed
// it discards everything, so work that outlives the deadline cannot change
// a result that has already been returned.
type collector struct {
	mu       sync.Mutex
	sealed   bool
	outcomes []outcome
	stats    Stats
}

func newCollector(units int) *collector {
	return &collector{outcomes: make([]outcome, units)}
}

func (c *collector) record(unit int, out outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	out.done = true
	c.outcomes[unit] = out
}

func (c *collector) called(resp providers.ReviewResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.stats.Calls++
	c.stats.InputTokens += resp.InputTokens
	c.stats.OutputTokens += resp.OutputTokens
}

func (c *collector) retried() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sealed {
		c.stats.Retries++
	}
}

// seal stops further recording and returns what was collected.
func (c *collector) seal() ([]outcome, Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	out := make([]outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out, c.stats
}

// dispatch reviews every unit with at most MaxConcurrentRequests calls in
// flight. It returns when all units finish or ctx is done, whichever comes
// first. A unit's failure never cancels its siblings.
func (o *Orchestrator) dispatch(ctx context.Context, units []Unit, c *collector) {
	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrentRequests))

	var limiter *rate.Limiter
	if o.cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.cfg.RequestsPerMinute)), 1)
	}

	var g errgroup.Group
	for _, u := range units {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			if out, finished := o.reviewUnit(ctx, u, c, limiter); finished {
				c.record(u.Index, out)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.log.Warn("review deadline reached, abandoning unfinished units", "error", ctx.Err())
	}
}

// reviewUnit runs one unit to a terminal outcome. finished is false when
// ctx ended first; such a unit is counted as skipped, not failed.
func (o *Orchestrator) reviewUnit(ctx context.Context, u Unit, c *collector, limiter *rate.Limiter) (out outcome, finished bool) {
	log := o.log.With("unit", u.Index, "path", u.Path(), "part", u.Part)

	req := providers.ReviewRequest{
		SystemPrompt: SystemPrompt(o.cfg),
		UserPrompt:   BuildUserPrompt(u, unitText(u, o.cfg, log), o.pr, o.rules, o.cfg.MaxFindings),
		MaxTokens:    o.cfg.MaxTokens,
		Temperature:  o.cfg.Temperature,
	}

	resp, err := o.call(ctx, req, c, limiter, log)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, false
		}
		log.Warn("unit failed", "error", err)
		return outcome{failed: true, err: err}, true
	}

	candidates, err := parseResponse(resp.Content)
	if errors.Is(err, errUnrecognized) {
		log.Debug("unrecognized response, requesting repair", "bytes", len(resp.Content))
		repair := req
		repair.UserPrompt = repairPrompt(req.UserPrompt, resp.Content, err)
		resp, err = o.call(ctx, repair, c, limiter, log)
		if err != nil {
			if ctx.Err() != nil {
				return outcome{}, false
			}
			log.Warn("unit failed during repair", "error", err)
			return outcome{failed: true, err: err}, true
		}
		candidates, err = parseResponse(resp.Content)
	}
	if err != nil {
		log.Warn("unit failed: response could not be parsed", "error", err)
		return outcome{failed: true, err: err}, true
	}

	for i := range candidates {
		candidates[i].unit = u.Index
		candidates[i].ordinal = i
	}
	log.Debug("unit reviewed", "candidates", len(candidates))
	return outcome{clean: len(candidates) == 0, findings: candidates}, true
}

// call makes one logical provider request, retrying transient failures
// with exponential backoff.
func (o *Orchestrator) call(ctx context.Context, req providers.ReviewRequest, c *collector, limiter *rate.Limiter, log *slog.Logger) (providers.ReviewResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := providers.Backoff(o.cfg.backoffBase(), attempt-1, maxBackoff)
			log.Debug("retrying provider call", "attempt", attempt, "delay", delay, "error", lastErr)
			c.retried()
			if err := o.sleep(ctx, delay); err != nil {
				return providers.ReviewResponse{}, err
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return providers.ReviewResponse{}, err
			}
		}

		resp, err := o.provider.Review(ctx, req)
		c.called(resp)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !providers.IsTransient(err) || ctx.Err() != nil {
			return providers.ReviewResponse{}, err
		}
	}
	return providers.ReviewResponse{}, fmt.Errorf("giving up after %d attempts: %w", o.cfg.MaxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
