package batchqueue_test

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/royalcat/chorographer/batchqueue"
	"github.com/thejerf/slogassert"
)

func newQueue(t *testing.T, cfg batchqueue.Config) *batchqueue.Queue[int] {
	t.Helper()
	q, err := batchqueue.New[int](cfg, batchqueue.WithLogger(slogassert.NullLogger()))
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return q
}

func numbers(n int, counter *atomic.Int64) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := range n {
			if counter != nil {
				counter.Add(1)
			}
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestOrderPreserved(t *testing.T) {
	q := newQueue(t, batchqueue.Config{BatchSize: 3, MaxQueueDepth: 2})

	var got [][]int
	stats, err := q.Run(context.Background(), numbers(10, nil), func(ctx context.Context, batch []int) (int, error) {
		got = append(got, batch)
		return len(batch), nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(got))
	}
	if len(got[3]) != 1 {
		t.Fatalf("expected a trailing batch of 1, got %d", len(got[3]))
	}
	next := 0
	for _, batch := range got {
		for _, v := range batch {
			if v != next {
				t.Fatalf("expected item %d, got %d", next, v)
			}
			next++
		}
	}

	if stats.Produced != 10 || stats.Consumed != 10 || stats.Written != 10 || stats.Batches != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestBackpressure(t *testing.T) {
	q := newQueue(t, batchqueue.Config{BatchSize: 1, MaxQueueDepth: 1})

	var produced atomic.Int64
	consumed := int64(0)
	stats, err := q.Run(context.Background(), numbers(20, &produced), func(ctx context.Context, batch []int) (int, error) {
		// queued batch + batch blocked on enqueue + the one handed to us
		if ahead := produced.Load() - consumed; ahead > 3 {
			t.Errorf("producer ran %d items ahead of the consumer", ahead)
		}
		time.Sleep(2 * time.Millisecond)
		consumed += int64(len(batch))
		return len(batch), nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if stats.EnqueueWaits == 0 {
		t.Fatal("expected the producer to block on a full queue")
	}
	if stats.BlockedTime <= 0 {
		t.Fatal("expected blocked time to be recorded")
	}
	if stats.Consumed != 20 {
		t.Fatalf("expected 20 items consumed, got %d", stats.Consumed)
	}
}

func TestSinkErrorAborts(t *testing.T) {
	q := newQueue(t, batchqueue.Config{BatchSize: 10, MaxQueueDepth: 1})

	errSink := errors.New("connection reset")
	var produced atomic.Int64
	calls := 0
	stats, err := q.Run(context.Background(), numbers(1000, &produced), func(ctx context.Context, batch []int) (int, error) {
		calls++
		if calls == 3 {
			return 0, errSink
		}
		return len(batch), nil
	})
	if !errors.Is(err, errSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected the sink to stop after the failing batch, got %d calls", calls)
	}
	if stats.Batches != 2 || stats.Consumed != 20 {
		t.Fatalf("expected 2 acknowledged batches, got %+v", stats)
	}
	if p := produced.Load(); p >= 1000 {
		t.Fatalf("expected the producer to stop early, produced %d", p)
	}
}

func TestSourceErrorAborts(t *testing.T) {
	q := newQueue(t, batchqueue.Config{BatchSize: 2, MaxQueueDepth: 4})

	errSource := errors.New("truncated block")
	source := func(yield func(int, error) bool) {
		for i := range 5 {
			if !yield(i, nil) {
				return
			}
		}
		yield(0, errSource)
	}

	_, err := q.Run(context.Background(), source, func(ctx context.Context, batch []int) (int, error) {
		return len(batch), nil
	})
	if !errors.Is(err, errSource) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestEmptySource(t *testing.T) {
	q := newQueue(t, batchqueue.ConfigDefault())

	stats, err := q.Run(context.Background(), numbers(0, nil), func(ctx context.Context, batch []int) (int, error) {
		t.Error("sink must not be called for an empty source")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats != (batchqueue.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestCancelledContext(t *testing.T) {
	q := newQueue(t, batchqueue.Config{BatchSize: 1, MaxQueueDepth: 1})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := q.Run(ctx, numbers(100, nil), func(ctx context.Context, batch []int) (int, error) {
		cancel()
		return len(batch), nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, cfg := range []batchqueue.Config{
		{BatchSize: 0, MaxQueueDepth: 1},
		{BatchSize: 1, MaxQueueDepth: 0},
	} {
		if _, err := batchqueue.New[int](cfg); !errors.Is(err, batchqueue.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}
