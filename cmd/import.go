package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/royalcat/chorographer/geomodel"
	"github.com/royalcat/chorographer/geoparser"
	"github.com/royalcat/chorographer/internal/stats"
	"github.com/royalcat/chorographer/osmsource"
	"github.com/royalcat/chorographer/pipeline"
	"github.com/royalcat/chorographer/store/memory"
	"github.com/royalcat/chorographer/store/postgis"
	"github.com/urfave/cli/v3"
)

type store interface {
	pipeline.Sink
	ComputeZoneHierarchy(ctx context.Context) (int, error)
	Close() error
}

func importCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:      "input",
			Aliases:   []string{"i"},
			Usage:     "OSM PBF extract",
			Required:  true,
			TakesFile: true,
			Sources:   cli.EnvVars("OSM_INPUT"),
		},
		&cli.IntFlag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "PBF decoders per pass",
			DefaultText: "max",
		},
		&cli.StringFlag{
			Name:        "preferred-localization",
			Aliases:     []string{"l"},
			DefaultText: "official",
			Value:       "official",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "draw a progress bar for every pass over the input",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "import into memory instead of PostGIS",
		},
		&cli.BoolFlag{
			Name:  "compute-hierarchy",
			Usage: "link zones to their parents after the import",
		},
		&cli.StringFlag{
			Name:      "stats-file",
			Usage:     "write a runtime stats report",
			TakesFile: true,
		},
	}
	flags = append(flags, pipelineFlags()...)
	flags = append(flags, postgresFlags()...)
	flags = append(flags, pprofFlags...)

	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "import an OSM extract",
		Flags:   flags,
		Action:  runImport,
	}
}

func openStore(ctx context.Context, cmd *cli.Command) (store, error) {
	if cmd.Bool("dry-run") {
		return memory.New(), nil
	}
	return postgis.Open(ctx, postgresConfig(cmd))
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	log := slog.Default()

	types, err := parseEntities(cmd.StringSlice("entity"))
	if err != nil {
		return err
	}

	stopProfiling, err := startProfiling(ctx, cmd)
	if err != nil {
		return err
	}

	var collector *stats.Collector
	if cmd.String("stats-file") != "" {
		collector, err = stats.NewCollector(statsInterval)
		if err != nil {
			return err
		}
		collector.Start(ctx)
	}

	srcCfg := osmsource.ConfigDefault()
	if threads := cmd.Int("threads"); threads > 0 {
		srcCfg.Threads = threads
	}
	srcCfg.Progress = cmd.Bool("progress")

	input := cmd.String("input")
	src, err := osmsource.Open(input, srcCfg)
	if err != nil {
		return err
	}
	defer src.Close()

	parserCfg := geoparser.ConfigDefault()
	if loc := cmd.String("preferred-localization"); loc != "official" {
		parserCfg.PreferredLocalization = loc
	}
	extractor, err := geoparser.NewExtractor(src, parserCfg)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	orchestrator, err := pipeline.New(extractor, st, pipelineConfig(cmd))
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "starting import", "input", input, "threads", srcCfg.Threads, "dry_run", cmd.Bool("dry-run"))
	res, runErr := orchestrator.Run(ctx, types, cmd.Bool("parallel"))

	if runErr == nil && cmd.Bool("compute-hierarchy") {
		linked, err := st.ComputeZoneHierarchy(ctx)
		if err != nil {
			return fmt.Errorf("compute zone hierarchy: %w", err)
		}
		log.InfoContext(ctx, "zone hierarchy computed", "zones", linked)
	}

	if err := stopProfiling(); err != nil {
		log.ErrorContext(ctx, "error writing profile", "error", err.Error())
	}

	if collector != nil {
		report := collector.Stop()
		report.RunID = res.RunID
		report.Degraded = res.Degraded
		report.Counts = make(map[string]int64, len(res.Counts))
		for t, n := range res.Counts {
			report.Counts[t.String()] = n
		}
		if err := report.SaveToFile(cmd.String("stats-file")); err != nil {
			log.ErrorContext(ctx, "error saving stats", "error", err.Error())
		}
	}

	if runErr != nil {
		return runErr
	}

	for _, t := range geomodel.EntityTypes {
		if n, ok := res.Counts[t]; ok {
			fmt.Printf("%s: %d\n", t, n)
		}
	}
	fmt.Printf("Import complete in %s (degraded: %t)\n", res.Duration, res.Degraded)
	return nil
}
