package main

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/convtrace/pkg/ctf"
)

func packCmd() *cli.Command {
	var (
		outPath string
		shape   string
		seed    int64
	)

	return &cli.Command{
		Name:  "pack",
		Usage: "Write a seeded random int8 tensor as a .ctf file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .ctf path",
				Required:    true,
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "shape",
				Usage:       "comma-separated dims, e.g. 1,16,16,8",
				Value:       "1,16,16,8",
				Destination: &shape,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "RNG seed",
				Value:       -1,
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			_ = c

			dims, n, err := parseShape(shape)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			rng := rand.New(rand.NewSource(seed))
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(int8(rng.Intn(256) - 128))
			}

			if err := ctf.WriteFile(outPath, ctf.DTypeI8, dims, payload); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", outPath, err), 1)
			}
			fmt.Printf("wrote %s: int8 [%s], %d elements\n", outPath, shape, n)
			return nil
		},
	}
}

func parseShape(s string) ([]uint64, int, error) {
	parts := strings.Split(s, ",")
	dims := make([]uint64, 0, len(parts))
	n := 1
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 1 {
			return nil, 0, fmt.Errorf("invalid shape %q", s)
		}
		dims = append(dims, uint64(v))
		n *= v
	}
	return dims, n, nil
}
