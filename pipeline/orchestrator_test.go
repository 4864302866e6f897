package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync/atomic"
	"testing"
	"time"

	"github.com/royalcat/chorographer/batchqueue"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/geoparser"
	"github.com/royalcat/chorographer/pipeline"
	"github.com/royalcat/chorographer/store/memory"
	"github.com/thejerf/slogassert"
)

var errInjected = errors.New("injected sink failure")

func fixture() *geoparser.MemorySource {
	pt := func(id int64, lat, lon float64, tags map[string]string) geoparser.RawPoint {
		return geoparser.RawPoint{ID: id, Lat: lat, Lon: lon, Tags: tags}
	}
	return &geoparser.MemorySource{
		PointList: []geoparser.RawPoint{
			pt(1, -18.90, 47.50, nil),
			pt(2, -18.90, 47.51, nil),
			pt(3, -18.90, 47.52, nil),
			pt(4, -18.89, 47.51, nil),
			pt(5, -18.91, 47.51, nil),
			pt(6, -18.88, 47.53, nil),
			pt(100, -18.905, 47.515, map[string]string{"amenity": "fuel", "name": "Jovena"}),
			pt(101, -18.895, 47.505, map[string]string{"amenity": "cafe", "name": "Gasy Kafe"}),
			pt(102, -18.885, 47.525, map[string]string{"shop": "supermarket", "name": "Score"}),
		},
		WayList: []geoparser.RawWay{
			{ID: 10, NodeIDs: []int64{1, 2, 3}, Tags: map[string]string{"highway": "primary", "surface": "asphalt"}},
			{ID: 11, NodeIDs: []int64{4, 2, 5}, Tags: map[string]string{"highway": "residential"}},
			{ID: 12, NodeIDs: []int64{3, 6}, Tags: map[string]string{"highway": "track", "surface": "dirt"}},
			{ID: 30, NodeIDs: []int64{1, 2, 4, 1}, Tags: map[string]string{
				"boundary": "administrative", "admin_level": "10", "name": "Ambohijatovo",
			}},
		},
	}
}

var fixtureCounts = map[geomodel.EntityType]int64{
	geomodel.EntityRoads:    3,
	geomodel.EntitySegments: 5,
	geomodel.EntityPOIs:     3,
	geomodel.EntityZones:    1,
}

// faultySink fails the first N calls of an upsert kind.
type faultySink struct {
	*memory.Store

	failRoads atomic.Int32
	failPOIs  atomic.Int32

	roadCalls atomic.Int32
	poiCalls  atomic.Int32

	onPOIs func()
}

func newFaultySink() *faultySink {
	return &faultySink{Store: memory.New()}
}

func (s *faultySink) UpsertRoads(ctx context.Context, batch []geomodel.Road) (int, error) {
	s.roadCalls.Add(1)
	if s.failRoads.Add(-1) >= 0 {
		return 0, errInjected
	}
	return s.Store.UpsertRoads(ctx, batch)
}

func (s *faultySink) UpsertPOIs(ctx context.Context, batch []geomodel.POI) (int, error) {
	s.poiCalls.Add(1)
	if s.onPOIs != nil {
		s.onPOIs()
	}
	if s.failPOIs.Add(-1) >= 0 {
		return 0, errInjected
	}
	return s.Store.UpsertPOIs(ctx, batch)
}

// joinSink holds the first segments batch until its context is cancelled
// and fails the first POI batch once that segments batch is in flight.
type joinSink struct {
	*memory.Store

	segmentsStarted chan struct{}
	blocked         atomic.Bool
	poiFailed       atomic.Bool

	inFlight  atomic.Int32
	cancelled atomic.Int32
	overlap   atomic.Int32
}

func newJoinSink() *joinSink {
	return &joinSink{Store: memory.New(), segmentsStarted: make(chan struct{})}
}

func (s *joinSink) UpsertRoads(ctx context.Context, batch []geomodel.Road) (int, error) {
	if s.inFlight.Load() > 0 {
		s.overlap.Add(1)
	}
	return s.Store.UpsertRoads(ctx, batch)
}

func (s *joinSink) UpsertSegments(ctx context.Context, batch []geomodel.Segment) (int, error) {
	if !s.blocked.CompareAndSwap(false, true) {
		return s.Store.UpsertSegments(ctx, batch)
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	close(s.segmentsStarted)

	select {
	case <-ctx.Done():
		// leave time for a premature fallback to show up as an overlap
		time.Sleep(20 * time.Millisecond)
		s.cancelled.Add(1)
		return 0, ctx.Err()
	case <-time.After(5 * time.Second):
		return 0, errors.New("segments batch was never cancelled")
	}
}

func (s *joinSink) UpsertPOIs(ctx context.Context, batch []geomodel.POI) (int, error) {
	if s.poiFailed.CompareAndSwap(false, true) {
		select {
		case <-s.segmentsStarted:
		case <-time.After(5 * time.Second):
		}
		return 0, errInjected
	}
	return s.Store.UpsertPOIs(ctx, batch)
}

type limitedSink struct {
	*memory.Store
	writers int
}

func (s limitedSink) MaxWriters() int {
	return s.writers
}

func testConfig() pipeline.Config {
	cfg := pipeline.ConfigDefault()
	small := batchqueue.Config{BatchSize: 2, MaxQueueDepth: 1}
	cfg.Roads, cfg.Segments, cfg.POIs, cfg.Zones = small, small, small, small
	return cfg
}

func newOrchestrator(t *testing.T, sink pipeline.Sink, cfg pipeline.Config, log *slog.Logger) *pipeline.Orchestrator {
	t.Helper()
	e, err := geoparser.NewExtractor(fixture(), geoparser.ConfigDefault(), geoparser.WithLogger(slogassert.NullLogger()))
	if err != nil {
		t.Fatalf("failed to create extractor: %v", err)
	}
	if log == nil {
		log = slogassert.NullLogger()
	}
	o, err := pipeline.New(e, sink, cfg, pipeline.WithLogger(log))
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	return o
}

func TestRunParallel(t *testing.T) {
	store := memory.New()
	o := newOrchestrator(t, store, testConfig(), nil)

	res, err := o.Run(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Degraded {
		t.Fatal("expected a clean run")
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}
	if !maps.Equal(res.Counts, fixtureCounts) {
		t.Fatalf("expected counts %v, got %v", fixtureCounts, res.Counts)
	}
	if !maps.Equal(store.Counts(), fixtureCounts) {
		t.Fatalf("expected stored rows %v, got %v", fixtureCounts, store.Counts())
	}
	if s := o.State(); s != pipeline.Completed {
		t.Fatalf("expected state completed, got %s", s)
	}
}

func TestFallbackMatchesSequential(t *testing.T) {
	ctx := context.Background()

	baseline := memory.New()
	want, err := newOrchestrator(t, baseline, testConfig(), nil).Run(ctx, nil, false)
	if err != nil {
		t.Fatalf("sequential baseline failed: %v", err)
	}

	handler := slogassert.New(t, slog.LevelWarn, nil)
	defer handler.AssertEmpty()

	sink := newFaultySink()
	sink.failPOIs.Store(1)
	o := newOrchestrator(t, sink, testConfig(), slog.New(handler))

	got, err := o.Run(ctx, nil, true)
	if err != nil {
		t.Fatalf("expected fallback to recover, got %v", err)
	}
	if !got.Degraded {
		t.Fatal("expected the run to be marked degraded")
	}
	if !maps.Equal(got.Counts, want.Counts) {
		t.Fatalf("fallback counts %v differ from sequential %v", got.Counts, want.Counts)
	}
	if !maps.Equal(sink.Counts(), baseline.Counts()) {
		t.Fatalf("fallback stored %v, sequential stored %v", sink.Counts(), baseline.Counts())
	}
	if c := sink.roadCalls.Load(); c != 4 {
		t.Fatalf("expected roads to be sunk twice in 2 batches, got %d calls", c)
	}

	handler.AssertMessage("concurrent phase failed, falling back to sequential import")
	handler.AssertSomeMessage("entity pipeline failed")
}

func TestFallbackWaitsForCancelledPipelines(t *testing.T) {
	sink := newJoinSink()
	o := newOrchestrator(t, sink, testConfig(), nil)

	res, err := o.Run(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("expected fallback to recover, got %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected the run to be marked degraded")
	}
	if c := sink.cancelled.Load(); c != 1 {
		t.Fatalf("expected the blocked segments batch to be cancelled once, got %d", c)
	}
	if c := sink.overlap.Load(); c != 0 {
		t.Fatalf("fallback started %d roads batches while a concurrent pipeline was still running", c)
	}
	if !maps.Equal(res.Counts, fixtureCounts) {
		t.Fatalf("expected counts %v, got %v", fixtureCounts, res.Counts)
	}
	if !maps.Equal(sink.Counts(), fixtureCounts) {
		t.Fatalf("expected stored rows %v, got %v", fixtureCounts, sink.Counts())
	}
}

func TestSequentialNeverFallsBack(t *testing.T) {
	sink := newFaultySink()
	sink.failPOIs.Store(1)
	o := newOrchestrator(t, sink, testConfig(), nil)

	res, err := o.Run(context.Background(), nil, false)
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if res.Degraded || errors.Is(err, pipeline.ErrFallbackFailed) {
		t.Fatalf("sequential run must not fall back: %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected the sink error, got %v", err)
	}

	var runErr *pipeline.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected a RunError, got %T", err)
	}
	partial := map[geomodel.EntityType]int64{
		geomodel.EntityRoads:    3,
		geomodel.EntitySegments: 5,
		geomodel.EntityPOIs:     0,
		geomodel.EntityZones:    0,
	}
	if !maps.Equal(runErr.Counts, partial) {
		t.Fatalf("expected partial counts %v, got %v", partial, runErr.Counts)
	}
	if c := sink.roadCalls.Load(); c != 2 {
		t.Fatalf("expected roads to be sunk once, got %d calls", c)
	}
	if s := o.State(); s != pipeline.Failed {
		t.Fatalf("expected state failed, got %s", s)
	}
}

func TestConfigSequential(t *testing.T) {
	sink := newFaultySink()
	sink.failPOIs.Store(1)
	cfg := testConfig()
	cfg.Sequential = true
	o := newOrchestrator(t, sink, cfg, nil)

	if _, err := o.Run(context.Background(), nil, true); err == nil || errors.Is(err, pipeline.ErrFallbackFailed) {
		t.Fatalf("expected a plain failure without fallback, got %v", err)
	}
}

func TestFallbackFailure(t *testing.T) {
	sink := newFaultySink()
	sink.failPOIs.Store(1 << 20)
	o := newOrchestrator(t, sink, testConfig(), nil)

	res, err := o.Run(context.Background(), nil, true)
	if !errors.Is(err, pipeline.ErrFallbackFailed) {
		t.Fatalf("expected ErrFallbackFailed, got %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected the sink error to be wrapped, got %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected the run to be marked degraded")
	}

	var runErr *pipeline.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected a RunError, got %T", err)
	}
	if n := runErr.Counts[geomodel.EntityRoads]; n != 3 {
		t.Fatalf("expected 3 roads written by the fallback, got %d", n)
	}
	if n := runErr.Counts[geomodel.EntityPOIs]; n != 0 {
		t.Fatalf("expected no POIs written, got %d", n)
	}
}

func TestRoadsPhaseFailureIsFatal(t *testing.T) {
	sink := newFaultySink()
	sink.failRoads.Store(1)
	o := newOrchestrator(t, sink, testConfig(), nil)

	res, err := o.Run(context.Background(), nil, true)
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected the sink error, got %v", err)
	}
	if res.Degraded || errors.Is(err, pipeline.ErrFallbackFailed) {
		t.Fatalf("roads failure must not fall back: %v", err)
	}
	if c := sink.roadCalls.Load(); c != 1 {
		t.Fatalf("expected a single roads call, got %d", c)
	}
	if c := sink.poiCalls.Load(); c != 0 {
		t.Fatalf("expected POIs never to run, got %d calls", c)
	}
}

func TestCancelledRunDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newFaultySink()
	sink.onPOIs = cancel
	o := newOrchestrator(t, sink, testConfig(), nil)

	res, err := o.Run(ctx, nil, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Degraded {
		t.Fatal("cancellation must not trigger the fallback")
	}
}

func TestSegmentsWithoutRoads(t *testing.T) {
	store := memory.New()
	o := newOrchestrator(t, store, testConfig(), nil)

	_, err := o.Run(context.Background(), []geomodel.EntityType{geomodel.EntitySegments, geomodel.EntityPOIs}, true)
	if !errors.Is(err, pipeline.ErrSegmentsWithoutRoads) {
		t.Fatalf("expected ErrSegmentsWithoutRoads, got %v", err)
	}
	if s := o.State(); s != pipeline.Idle {
		t.Fatalf("expected the run not to start, got state %s", s)
	}
	if c := store.Counts()[geomodel.EntityPOIs]; c != 0 {
		t.Fatalf("expected nothing written, got %d POIs", c)
	}
}

func TestSubset(t *testing.T) {
	store := memory.New()
	o := newOrchestrator(t, store, testConfig(), nil)

	res, err := o.Run(context.Background(), []geomodel.EntityType{geomodel.EntityPOIs, geomodel.EntityZones}, true)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := map[geomodel.EntityType]int64{geomodel.EntityPOIs: 3, geomodel.EntityZones: 1}
	if !maps.Equal(res.Counts, want) {
		t.Fatalf("expected counts %v, got %v", want, res.Counts)
	}
	if c := store.Counts()[geomodel.EntityRoads]; c != 0 {
		t.Fatalf("expected no roads written, got %d", c)
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	store := memory.New()
	o := newOrchestrator(t, store, testConfig(), nil)

	for i := range 2 {
		if _, err := o.Run(context.Background(), nil, true); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if !maps.Equal(store.Counts(), fixtureCounts) {
			t.Fatalf("run %d: expected stored rows %v, got %v", i, fixtureCounts, store.Counts())
		}
	}
}

func TestWriterCapacity(t *testing.T) {
	e, err := geoparser.NewExtractor(fixture(), geoparser.ConfigDefault())
	if err != nil {
		t.Fatal(err)
	}
	sink := limitedSink{Store: memory.New(), writers: 1}

	cfg := testConfig()
	cfg.Concurrency = 3
	if _, err := pipeline.New(e, sink, cfg); !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg.Concurrency = 1
	o := newOrchestrator(t, sink, cfg, nil)
	res, err := o.Run(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !maps.Equal(res.Counts, fixtureCounts) {
		t.Fatalf("expected counts %v, got %v", fixtureCounts, res.Counts)
	}
}

func TestInvalidConfig(t *testing.T) {
	e, err := geoparser.NewExtractor(fixture(), geoparser.ConfigDefault())
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.POIs.BatchSize = 0
	if _, err := pipeline.New(e, memory.New(), cfg); !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for an empty batch, got %v", err)
	}

	cfg = testConfig()
	cfg.Segment.SeasonFactor = 2
	if _, err := pipeline.New(e, memory.New(), cfg); !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a season factor, got %v", err)
	}
}
