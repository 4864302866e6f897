package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/pprof"

	"github.com/urfave/cli/v3"
)

var pprofFlags = []cli.Flag{
	&cli.StringFlag{
		Name: "pprof.listen",
	},
	&cli.BoolFlag{
		Name:  "pprof.profile",
		Usage: "write a cpu profile to profile.cpu.pprof",
	},
	&cli.BoolFlag{
		Name:  "pprof.heap",
		Usage: "write a heap profile after the import",
	},
}

// startProfiling starts the pprof listener and the cpu profile when
// requested. The returned stop func must be called once the work is done.
func startProfiling(ctx context.Context, cmd *cli.Command) (func() error, error) {
	log := slog.Default()

	if pprofListen := cmd.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.InfoContext(ctx, "starting pprof server", "address", pprofListen)
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.ErrorContext(ctx, "error starting pprof server", "error", err)
			}
		}()
	}

	cpu := cmd.Bool("pprof.profile")
	if cpu {
		f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("error creating pprof file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("error starting pprof: %w", err)
		}
	}

	heap := cmd.Bool("pprof.heap")
	return func() error {
		if cpu {
			pprof.StopCPUProfile()
		}
		if heap {
			return writeHeapProfile("profile")
		}
		return nil
	}, nil
}

func writeHeapProfile(name string) error {
	f, err := os.Create(name + ".heap.prof")
	if err != nil {
		return fmt.Errorf("error creating heap profile: %w", err)
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}
