package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/royalcat/chorographer/batchqueue"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/segment"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	meter  = otel.Meter("github.com/royalcat/chorographer/pipeline")
	tracer = otel.Tracer("github.com/royalcat/chorographer/pipeline")
)

// Extractor produces the entity streams. Each call starts a new pass.
type Extractor interface {
	Roads(ctx context.Context) iter.Seq2[geomodel.Road, error]
	POIs(ctx context.Context) iter.Seq2[geomodel.POI, error]
	Zones(ctx context.Context) iter.Seq2[geomodel.Zone, error]
}

// Sink persists batches with upsert by id semantics, so sending the same
// batch twice leaves the store unchanged.
type Sink interface {
	UpsertRoads(ctx context.Context, batch []geomodel.Road) (int, error)
	UpsertSegments(ctx context.Context, batch []geomodel.Segment) (int, error)
	UpsertPOIs(ctx context.Context, batch []geomodel.POI) (int, error)
	UpsertZones(ctx context.Context, batch []geomodel.Zone) (int, error)
}

// WriterCapacity is implemented by sinks with a bounded connection pool.
type WriterCapacity interface {
	MaxWriters() int
}

type Result struct {
	Counts   map[geomodel.EntityType]int64
	Duration time.Duration
	// Degraded is set when the concurrent phase failed and the import was
	// completed by the sequential fallback.
	Degraded bool
	RunID    string
}

type Orchestrator struct {
	extractor Extractor
	sink      Sink
	cfg       Config
	log       *slog.Logger

	running sync.Mutex
	state   atomic.Uint32

	metricItems     metric.Int64Counter
	metricBatches   metric.Int64Counter
	metricWaits     metric.Int64Counter
	metricFallbacks metric.Int64Counter
	metricRuns      metric.Int64Counter
	metricDuration  metric.Float64Histogram
}

func New(extractor Extractor, sink Sink, cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(sink); err != nil {
		return nil, err
	}

	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	metricItems, err := meter.Int64Counter("pipeline_items_total")
	if err != nil {
		return nil, err
	}
	metricBatches, err := meter.Int64Counter("pipeline_batches_total")
	if err != nil {
		return nil, err
	}
	metricWaits, err := meter.Int64Counter("pipeline_enqueue_waits_total")
	if err != nil {
		return nil, err
	}
	metricFallbacks, err := meter.Int64Counter("pipeline_fallbacks_total")
	if err != nil {
		return nil, err
	}
	metricRuns, err := meter.Int64Counter("pipeline_runs_total")
	if err != nil {
		return nil, err
	}
	metricDuration, err := meter.Float64Histogram("pipeline_run_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		extractor: extractor,
		sink:      sink,
		cfg:       cfg,
		log:       o.log.With("component", "pipeline"),

		metricItems:     metricItems,
		metricBatches:   metricBatches,
		metricWaits:     metricWaits,
		metricFallbacks: metricFallbacks,
		metricRuns:      metricRuns,
		metricDuration:  metricDuration,
	}, nil
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) transition(ctx context.Context, log *slog.Logger, to State) {
	from := State(o.state.Swap(uint32(to)))
	log.InfoContext(ctx, "state transition", "from", from.String(), "to", to.String())
	trace.SpanFromContext(ctx).AddEvent(to.String())
}

// counts holds rows acknowledged by the sink in one attempt.
type counts struct {
	n [geomodel.EntityZones + 1]atomic.Int64
}

func (c *counts) add(t geomodel.EntityType, n int) {
	c.n[t].Add(int64(n))
}

func (c *counts) snapshot(types entitySet) map[geomodel.EntityType]int64 {
	out := make(map[geomodel.EntityType]int64, len(types))
	for t := range types {
		out[t] = c.n[t].Load()
	}
	return out
}

type entitySet map[geomodel.EntityType]struct{}

func (s entitySet) has(t geomodel.EntityType) bool {
	_, ok := s[t]
	return ok
}

func newEntitySet(types []geomodel.EntityType) (entitySet, error) {
	set := entitySet{}
	if len(types) == 0 {
		types = geomodel.EntityTypes
	}
	for _, t := range types {
		if t < geomodel.EntityRoads || t > geomodel.EntityZones {
			return nil, fmt.Errorf("%w: unknown entity type %s", ErrInvalidConfig, t)
		}
		set[t] = struct{}{}
	}
	if set.has(geomodel.EntitySegments) && !set.has(geomodel.EntityRoads) {
		return nil, ErrSegmentsWithoutRoads
	}
	return set, nil
}

// Run imports the requested entity types, all of them when types is empty.
// Roads are always sunk first and alone. With parallel set, segments, POIs
// and zones then run concurrently; if that phase fails the whole import is
// rerun once sequentially and the result is marked degraded. A sequential run
// never falls back.
func (o *Orchestrator) Run(ctx context.Context, types []geomodel.EntityType, parallel bool) (Result, error) {
	set, err := newEntitySet(types)
	if err != nil {
		return Result{}, err
	}

	if !o.running.TryLock() {
		return Result{}, ErrAlreadyRunning
	}
	defer o.running.Unlock()
	o.state.Store(uint32(Idle))

	sequential := !parallel || o.cfg.Sequential
	res := Result{RunID: uuid.NewString()}
	log := o.log.With("run_id", res.RunID)

	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Bool("sequential", sequential),
	))
	defer span.End()

	start := time.Now()
	log.InfoContext(ctx, "import started", "entities", len(set), "sequential", sequential)

	c := &counts{}
	if sequential {
		err = o.runSequential(ctx, log, Sequential, set, c)
	} else {
		err = o.runParallel(ctx, log, set, c)
		if err != nil && ctx.Err() == nil && !isRoadsFailure(err) {
			log.WarnContext(ctx, "concurrent phase failed, falling back to sequential import", "error", err.Error())
			o.metricFallbacks.Add(ctx, 1)
			res.Degraded = true

			c = &counts{}
			err = o.runSequential(ctx, log, SequentialFallback, set, c)
		}
	}

	res.Counts = c.snapshot(set)
	res.Duration = time.Since(start)
	o.metricDuration.Record(ctx, res.Duration.Seconds())

	if err != nil {
		o.transition(ctx, log, Failed)
		o.metricRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "import failed", "error", err.Error(), "counts", countMap(res.Counts))
		return res, &RunError{Counts: res.Counts, Fallback: res.Degraded, Err: err}
	}

	o.transition(ctx, log, Completed)
	o.metricRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", "completed"),
		attribute.Bool("degraded", res.Degraded),
	))
	log.InfoContext(ctx, "import finished",
		"counts", countMap(res.Counts),
		"duration", res.Duration,
		"degraded", res.Degraded,
	)
	return res, nil
}

type roadsError struct{ err error }

func (e roadsError) Error() string { return e.err.Error() }
func (e roadsError) Unwrap() error { return e.err }

func isRoadsFailure(err error) bool {
	var re roadsError
	return errors.As(err, &re)
}

func (o *Orchestrator) newBuilder(log *slog.Logger, set entitySet) (*segment.Builder, error) {
	if !set.has(geomodel.EntitySegments) {
		return nil, nil
	}
	return segment.NewBuilder(o.cfg.Segment, segment.WithLogger(log))
}

func (o *Orchestrator) runParallel(ctx context.Context, log *slog.Logger, set entitySet, c *counts) error {
	builder, err := o.newBuilder(log, set)
	if err != nil {
		return roadsError{err}
	}
	if builder != nil {
		defer builder.Close()
	}

	o.transition(ctx, log, RoadsPhase)
	if set.has(geomodel.EntityRoads) {
		if err := o.pipe(ctx, log, geomodel.EntityRoads, builder, c); err != nil {
			return roadsError{err}
		}
	}

	o.transition(ctx, log, ConcurrentPhase)
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(o.cfg.Concurrency)
	for _, t := range geomodel.EntityTypes[1:] {
		if !set.has(t) {
			continue
		}
		p.Go(func(ctx context.Context) error {
			return o.pipe(ctx, log, t, builder, c)
		})
	}
	// Wait joins every pipeline, none outlives the phase.
	return p.Wait()
}

func (o *Orchestrator) runSequential(ctx context.Context, log *slog.Logger, state State, set entitySet, c *counts) error {
	o.transition(ctx, log, state)

	builder, err := o.newBuilder(log, set)
	if err != nil {
		return err
	}
	if builder != nil {
		defer builder.Close()
	}

	for _, t := range geomodel.EntityTypes {
		if !set.has(t) {
			continue
		}
		if err := o.pipe(ctx, log, t, builder, c); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) pipe(ctx context.Context, log *slog.Logger, t geomodel.EntityType, builder *segment.Builder, c *counts) error {
	switch t {
	case geomodel.EntityRoads:
		return run(ctx, o, log, t, o.extractor.Roads(ctx), func(ctx context.Context, batch []geomodel.Road) (int, error) {
			n, err := o.sink.UpsertRoads(ctx, batch)
			if err == nil && builder != nil {
				builder.Add(batch...)
			}
			return n, err
		}, c)
	case geomodel.EntitySegments:
		return run(ctx, o, log, t, builder.Segments(ctx), o.sink.UpsertSegments, c)
	case geomodel.EntityPOIs:
		return run(ctx, o, log, t, o.extractor.POIs(ctx), o.sink.UpsertPOIs, c)
	case geomodel.EntityZones:
		return run(ctx, o, log, t, o.extractor.Zones(ctx), o.sink.UpsertZones, c)
	}
	return fmt.Errorf("%w: unknown entity type %s", ErrInvalidConfig, t)
}

func run[T any](ctx context.Context, o *Orchestrator, log *slog.Logger, t geomodel.EntityType, source iter.Seq2[T, error], sink batchqueue.SinkFunc[T], c *counts) error {
	ctx, span := tracer.Start(ctx, "pipeline."+t.String())
	defer span.End()

	log = log.With("entity", t.String())
	attrs := metric.WithAttributes(attribute.String("entity", t.String()))

	q, err := batchqueue.New[T](o.cfg.queue(t), batchqueue.WithLogger(log))
	if err != nil {
		return err
	}

	stats, err := q.Run(ctx, source, func(ctx context.Context, batch []T) (int, error) {
		n, err := sink(ctx, batch)
		if err != nil {
			return n, err
		}
		c.add(t, n)
		o.metricItems.Add(ctx, int64(n), attrs)
		o.metricBatches.Add(ctx, 1, attrs)
		return n, nil
	})
	o.metricWaits.Add(ctx, stats.EnqueueWaits, attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "entity pipeline failed", "error", err.Error(), "stats", stats)
		return fmt.Errorf("%s pipeline: %w", t, err)
	}

	log.InfoContext(ctx, "entity pipeline finished", "stats", stats)
	return nil
}

type countMap map[geomodel.EntityType]int64

func (c countMap) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(c))
	for _, t := range geomodel.EntityTypes {
		if n, ok := c[t]; ok {
			attrs = append(attrs, slog.Int64(t.String(), n))
		}
	}
	return slog.GroupValue(attrs...)
}
