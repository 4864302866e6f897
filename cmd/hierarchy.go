package main

import (
	"context"
	"fmt"

	"github.com/royalcat/chorographer/store/postgis"
	"github.com/urfave/cli/v3"
)

func hierarchyCommand() *cli.Command {
	return &cli.Command{
		Name:   "hierarchy",
		Usage:  "link stored zones to their parent zones",
		Flags:  postgresFlags(),
		Action: runHierarchy,
	}
}

func runHierarchy(ctx context.Context, cmd *cli.Command) error {
	st, err := postgis.Open(ctx, postgresConfig(cmd))
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ComputeZoneHierarchy(ctx)
	if err != nil {
		return fmt.Errorf("compute zone hierarchy: %w", err)
	}
	fmt.Printf("Zones updated: %d\n", n)
	return nil
}
