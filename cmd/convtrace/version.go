package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/convtrace/internal/version"

	"github.com/urfave/cli/v3"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_ = ctx
			_ = cmd
			fmt.Printf("convtrace %s\n", version.String())
			if version.BuildTime != "" {
				fmt.Printf("build time: %s\n", version.BuildTime)
			}
			return nil
		},
	}
}
