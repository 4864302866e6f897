package main

import (
	"fmt"
	"time"

	"github.com/royalcat/chorographer/batchqueue"
	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/pipeline"
	"github.com/royalcat/chorographer/segment"
	"github.com/royalcat/chorographer/store/postgis"
	"github.com/urfave/cli/v3"
)

func postgresFlags() []cli.Flag {
	def := postgis.ConfigDefault()
	return []cli.Flag{
		&cli.StringFlag{Name: "postgres.host", Value: def.Host, Sources: cli.EnvVars("POSTGRES_HOST")},
		&cli.IntFlag{Name: "postgres.port", Value: def.Port, Sources: cli.EnvVars("POSTGRES_PORT")},
		&cli.StringFlag{Name: "postgres.user", Value: def.User, Sources: cli.EnvVars("POSTGRES_USER")},
		&cli.StringFlag{Name: "postgres.password", Sources: cli.EnvVars("POSTGRES_PASSWORD")},
		&cli.StringFlag{Name: "postgres.db", Value: def.Database, Sources: cli.EnvVars("POSTGRES_DB")},
		&cli.StringFlag{Name: "postgres.sslmode", Value: def.SSLMode, Sources: cli.EnvVars("POSTGRES_SSLMODE")},
		&cli.IntFlag{
			Name:    "postgres.max-conns",
			Usage:   "connection pool size, bounds the pipeline concurrency",
			Value:   def.MaxConns,
			Sources: cli.EnvVars("POSTGRES_MAX_CONNS"),
		},
		&cli.DurationFlag{
			Name:    "postgres.statement-timeout",
			Value:   def.StatementTimeout,
			Sources: cli.EnvVars("POSTGRES_STATEMENT_TIMEOUT"),
		},
	}
}

func postgresConfig(cmd *cli.Command) postgis.Config {
	return postgis.Config{
		Host:             cmd.String("postgres.host"),
		Port:             cmd.Int("postgres.port"),
		User:             cmd.String("postgres.user"),
		Password:         cmd.String("postgres.password"),
		Database:         cmd.String("postgres.db"),
		SSLMode:          cmd.String("postgres.sslmode"),
		MaxConns:         cmd.Int("postgres.max-conns"),
		StatementTimeout: cmd.Duration("postgres.statement-timeout"),
	}
}

func pipelineFlags() []cli.Flag {
	def := pipeline.ConfigDefault()
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "batch-size",
			Value:   def.Roads.BatchSize,
			Sources: cli.EnvVars("BATCH_SIZE"),
		},
		&cli.IntFlag{
			Name:    "queue-depth",
			Usage:   "batches buffered per entity pipeline",
			Value:   def.Roads.MaxQueueDepth,
			Sources: cli.EnvVars("PARALLEL_QUEUE_DEPTH"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Value:   def.Concurrency,
			Sources: cli.EnvVars("PIPELINE_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:    "parallel",
			Usage:   "run segments, POIs and zones concurrently",
			Value:   true,
			Sources: cli.EnvVars("ENABLE_PARALLEL_PIPELINE"),
		},
		&cli.FloatFlag{
			Name:    "season-factor",
			Usage:   "speed factor for the whole run, 1 is dry season",
			Value:   def.Segment.SeasonFactor,
			Sources: cli.EnvVars("SEASON_FACTOR"),
		},
		&cli.BoolFlag{
			Name:    "season-unpaved-only",
			Usage:   "apply the season factor to unpaved roads only",
			Sources: cli.EnvVars("SEASON_UNPAVED_ONLY"),
		},
		&cli.StringSliceFlag{
			Name:  "entity",
			Usage: "entity types to import (roads, segments, pois, zones), all by default",
		},
	}
}

func pipelineConfig(cmd *cli.Command) pipeline.Config {
	queue := batchqueue.Config{
		BatchSize:     cmd.Int("batch-size"),
		MaxQueueDepth: cmd.Int("queue-depth"),
	}
	return pipeline.Config{
		Roads:    queue,
		Segments: queue,
		POIs:     queue,
		Zones:    queue,
		Segment: segment.Config{
			SeasonFactor:      cmd.Float("season-factor"),
			SeasonUnpavedOnly: cmd.Bool("season-unpaved-only"),
		},
		Concurrency: cmd.Int("concurrency"),
	}
}

func parseEntities(values []string) ([]geomodel.EntityType, error) {
	types := make([]geomodel.EntityType, 0, len(values))
	for _, v := range values {
		t, err := geomodel.ParseEntityType(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --entity: %w", err)
		}
		types = append(types, t)
	}
	return types, nil
}

const statsInterval = time.Second
