package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EstimateTokens approximates the token cost of one request: roughly four
// characters per prompt token, plus the full completion budget.
func EstimateTokens(prompt string, completionBudget int) int {
	return len(prompt)/4 + completionBudget
}

// WindowLimiter throttles work to at most a fixed number of requests and
// estimated tokens per interval. Both budgets reset together when the
// interval elapses. A nil *WindowLimiter is valid and never blocks.
type WindowLimiter struct {
	requestsPerInterval int
	tokensPerInterval   int
	interval            time.Duration

	mu           sync.Mutex
	windowStart  time.Time
	requestsUsed int
	tokensUsed   int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindowLimiter creates a limiter allowing up to requests requests and
// tokens estimated tokens per interval. A non-positive budget disables that
// dimension; interval defaults to one minute.
func NewWindowLimiter(requests, tokens int, interval time.Duration) *WindowLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WindowLimiter{
		requestsPerInterval: requests,
		tokensPerInterval:   tokens,
		interval:            interval,
		now:                 time.Now,
		sleep:               sleepCtx,
	}
}

// Acquire blocks until one request costing tokens fits in the current
// window, then records it. It returns early when the context is canceled,
// or immediately when a single request can never fit the token budget.
func (l *WindowLimiter) Acquire(ctx context.Context, tokens int) error {
	if l == nil {
		return nil
	}
	if l.tokensPerInterval > 0 && tokens > l.tokensPerInterval {
		return fmt.Errorf("request needs %d tokens but the interval budget is %d", tokens, l.tokensPerInterval)
	}

	for {
		l.mu.Lock()
		now := l.now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.interval {
			l.windowStart = now
			l.requestsUsed = 0
			l.tokensUsed = 0
		}

		requestsOK := l.requestsPerInterval <= 0 || l.requestsUsed < l.requestsPerInterval
		tokensOK := l.tokensPerInterval <= 0 || l.tokensUsed+tokens <= l.tokensPerInterval
		if requestsOK && tokensOK {
			l.requestsUsed++
			l.tokensUsed += tokens
			l.mu.Unlock()
			return nil
		}

		wait := l.interval - now.Sub(l.windowStart)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		slog.Debug("rate limit window exhausted, waiting", "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
