package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stepscope/internal/cache"
	"stepscope/internal/collection"
	"stepscope/internal/modelclient"
)

// ProcessFunc converts one raw model reply into a step result. An error
// counts as a failed attempt for the item being processed.
type ProcessFunc func(item Item, msg *modelclient.Message) (*collection.StepResult, error)

// Processor is the production Executor. It fans items out to a model client
// with bounded parallelism, windowed rate limiting and per-item retries.
type Processor struct {
	client  modelclient.Client
	process ProcessFunc

	maxParallel int
	maxRetries  int
	maxTokens   int
	temperature float64

	limiter    *WindowLimiter
	cache      *cache.Cache
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxParallel bounds the number of in-flight items.
func WithMaxParallel(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxParallel = n
		}
	}
}

// WithMaxRetries sets how many additional attempts a failed item gets.
func WithMaxRetries(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithGeneration sets the completion budget and sampling temperature sent
// with every request.
func WithGeneration(maxTokens int, temperature float64) Option {
	return func(p *Processor) {
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
		p.temperature = temperature
	}
}

// WithLimiter installs a rate limiter shared by all workers.
func WithLimiter(l *WindowLimiter) Option {
	return func(p *Processor) {
		p.limiter = l
	}
}

// WithCache serves repeated (model, options, prompt) requests from cache.
func WithCache(c *cache.Cache) Option {
	return func(p *Processor) {
		p.cache = c
	}
}

// WithRetryDelay overrides the base backoff delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

// NewProcessor creates a Processor evaluating prompts against client and
// converting replies through process.
func NewProcessor(client modelclient.Client, process ProcessFunc, opts ...Option) *Processor {
	p := &Processor{
		client:      client,
		process:     process,
		maxParallel: 1,
		maxRetries:  1,
		maxTokens:   1000,
		retryDelay:  2 * time.Second,
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Execute evaluates every item and returns exactly one outcome per key.
// The only errors returned are whole-batch failures, i.e. context
// cancellation; items that fail on their own come back with a nil Result.
func (p *Processor) Execute(ctx context.Context, items []Item) ([]Outcome, error) {
	outcomes := make([]Outcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	for i, item := range items {
		g.Go(func() error {
			result, err := p.evaluateItem(gctx, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("step evaluation failed",
					"qid", item.Key.QID,
					"step_index", item.Key.StepIndex,
					"error", err)
				outcomes[i] = Outcome{Key: item.Key}
				return nil
			}
			outcomes[i] = Outcome{Key: item.Key, Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (p *Processor) evaluateItem(ctx context.Context, item Item) (*collection.StepResult, error) {
	req := modelclient.Request{
		Prompt:      item.Prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.RequestKey(p.client.ModelID(), req)
		if msg, ok := p.cache.Get(cacheKey); ok {
			result, err := p.process(item, msg)
			if err == nil {
				slog.Debug("served from cache",
					"qid", item.Key.QID,
					"step_index", item.Key.StepIndex)
				return result, nil
			}
			slog.Warn("cached response failed processing, re-requesting",
				"qid", item.Key.QID,
				"error", err)
		}
	}

	var last error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1))
			slog.Debug("retrying step evaluation",
				"qid", item.Key.QID,
				"step_index", item.Key.StepIndex,
				"attempt", attempt+1,
				"delay", delay)
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := p.limiter.Acquire(ctx, EstimateTokens(item.Prompt, p.maxTokens)); err != nil {
			return nil, err
		}

		msg, err := p.client.Complete(ctx, req)
		if err != nil {
			if modelclient.IsPermanent(err) {
				return nil, err
			}
			last = err
			continue
		}

		result, err := p.process(item, msg)
		if err != nil {
			last = err
			continue
		}

		if p.cache != nil {
			if err := p.cache.Put(cacheKey, msg); err != nil {
				slog.Warn("cache write failed", "error", err)
			}
		}
		return result, nil
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", p.maxRetries+1, last)
}
