package batchqueue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("invalid batch queue config")

type Config struct {
	// BatchSize is the number of items handed to the sink at once.
	BatchSize int
	// MaxQueueDepth is the number of full batches buffered between
	// producer and consumer.
	MaxQueueDepth int
}

func ConfigDefault() Config {
	return Config{
		BatchSize:     1000,
		MaxQueueDepth: 10,
	}
}

func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxQueueDepth < 1 {
		return fmt.Errorf("%w: queue depth must be positive, got %d", ErrInvalidConfig, c.MaxQueueDepth)
	}
	return nil
}

type Stats struct {
	Produced int64
	Consumed int64
	// Written is the sum of the counts reported by the sink.
	Written int64
	Batches int64

	// EnqueueWaits is the number of times the producer found the queue full.
	EnqueueWaits int64
	BlockedTime  time.Duration
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("produced", s.Produced),
		slog.Int64("consumed", s.Consumed),
		slog.Int64("written", s.Written),
		slog.Int64("batches", s.Batches),
		slog.Int64("enqueue_waits", s.EnqueueWaits),
		slog.Duration("blocked", s.BlockedTime),
	)
}

// SinkFunc persists one batch and reports how many rows it wrote.
type SinkFunc[T any] func(ctx context.Context, batch []T) (int, error)

// Queue moves items from a source to a sink in batches, one producer and one
// consumer goroutine per run. Peak memory is bounded by the queue depth.
type Queue[T any] struct {
	cfg Config
	log *slog.Logger
}

func New[T any](cfg Config, opts ...Option) (*Queue[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	return &Queue[T]{
		cfg: cfg,
		log: o.log.With("component", "batchqueue"),
	}, nil
}

// Run drains source into sink. Batches reach the sink in source order. The
// first error of either side cancels the other; batches already written are
// left as they are.
func (q *Queue[T]) Run(ctx context.Context, source iter.Seq2[T, error], sink SinkFunc[T]) (Stats, error) {
	var (
		produced Stats
		consumed Stats
	)

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan []T, q.cfg.MaxQueueDepth)

	g.Go(func() error {
		defer close(batches)

		batch := make([]T, 0, q.cfg.BatchSize)
		for item, err := range source {
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			batch = append(batch, item)
			produced.Produced++

			if len(batch) == q.cfg.BatchSize {
				if err := enqueue(ctx, batches, batch, &produced); err != nil {
					return err
				}
				batch = make([]T, 0, q.cfg.BatchSize)
			}
		}

		if len(batch) > 0 {
			return enqueue(ctx, batches, batch, &produced)
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}

			n, err := sink(ctx, batch)
			if err != nil {
				return fmt.Errorf("sink batch %d: %w", consumed.Batches+1, err)
			}

			consumed.Batches++
			consumed.Consumed += int64(len(batch))
			consumed.Written += int64(n)
		}
		return nil
	})

	err := g.Wait()

	stats := Stats{
		Produced:     produced.Produced,
		Consumed:     consumed.Consumed,
		Written:      consumed.Written,
		Batches:      consumed.Batches,
		EnqueueWaits: produced.EnqueueWaits,
		BlockedTime:  produced.BlockedTime,
	}
	q.log.DebugContext(ctx, "queue finished", "stats", stats)

	return stats, err
}

func enqueue[T any](ctx context.Context, batches chan<- []T, batch []T, stats *Stats) error {
	select {
	case batches <- batch:
		return nil
	default:
	}

	stats.EnqueueWaits++
	start := time.Now()
	defer func() {
		stats.BlockedTime += time.Since(start)
	}()

	select {
	case batches <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
