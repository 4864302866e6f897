package pipeline

import (
	"fmt"

	"github.com/royalcat/chorographer/batchqueue"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/segment"
)

type Config struct {
	Roads    batchqueue.Config
	Segments batchqueue.Config
	POIs     batchqueue.Config
	Zones    batchqueue.Config

	Segment segment.Config

	// Concurrency is the number of entity pipelines running at once in the
	// concurrent phase. It must not exceed the sink's writer capacity.
	Concurrency int
	// Sequential disables the concurrent phase and the fallback.
	Sequential bool
}

func ConfigDefault() Config {
	return Config{
		Roads:       batchqueue.ConfigDefault(),
		Segments:    batchqueue.ConfigDefault(),
		POIs:        batchqueue.ConfigDefault(),
		Zones:       batchqueue.ConfigDefault(),
		Segment:     segment.ConfigDefault(),
		Concurrency: 3,
	}
}

func (c Config) queue(t geomodel.EntityType) batchqueue.Config {
	switch t {
	case geomodel.EntityRoads:
		return c.Roads
	case geomodel.EntitySegments:
		return c.Segments
	case geomodel.EntityPOIs:
		return c.POIs
	default:
		return c.Zones
	}
}

func (c Config) validate(sink Sink) error {
	for _, t := range geomodel.EntityTypes {
		if err := c.queue(t).Validate(); err != nil {
			return fmt.Errorf("%w: %s queue: %w", ErrInvalidConfig, t, err)
		}
	}
	if err := c.Segment.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if wc, ok := sink.(WriterCapacity); ok {
		if limit := wc.MaxWriters(); limit > 0 && c.Concurrency > limit {
			return fmt.Errorf("%w: concurrency %d exceeds sink writer capacity %d", ErrInvalidConfig, c.Concurrency, limit)
		}
	}
	return nil
}
