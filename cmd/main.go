package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/joho/godotenv"
	"github.com/royalcat/chorographer/internal/telemetry"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

const appName = "chorographer"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("error loading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	var (
		tel         *telemetry.Client
		stopMetrics context.CancelFunc = func() {}
	)

	return &cli.Command{
		Name:  appName,
		Usage: "imports roads, points of interest and administrative zones from OSM extracts into PostGIS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "metrics.listen",
				Usage:   "address of the prometheus endpoint, disabled when empty",
				Sources: cli.EnvVars("METRICS_LISTEN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			var err error
			tel, err = telemetry.Setup(ctx, telemetry.Config{
				AppName:   appName,
				LogLevel:  cmd.String("log-level"),
				LogFormat: cmd.String("log-format"),
			})
			if err != nil {
				return ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
			}

			if address := cmd.String("metrics.listen"); address != "" {
				var metricsCtx context.Context
				metricsCtx, stopMetrics = context.WithCancel(ctx)
				go func() {
					if err := telemetry.ServeMetrics(metricsCtx, address); err != nil {
						log.Printf("metrics server: %v", err)
					}
				}()
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			stopMetrics()
			if tel == nil {
				return nil
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Flush(flushCtx); err != nil {
				log.Printf("telemetry flush: %v", err)
			}
			tel.Shutdown(flushCtx)
			return nil
		},
		Commands: []*cli.Command{
			importCommand(),
			hierarchyCommand(),
		},
	}
}
