package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/kernel"
	"github.com/samcharles93/convtrace/internal/logger"
	"github.com/samcharles93/convtrace/internal/model"
	"github.com/samcharles93/convtrace/pkg/ctf"
)

func runCmd() *cli.Command {
	var (
		configPath   string
		inputPath    string
		outPath      string
		manifestPath string
		seed         int64
		int4         bool
		logLevel     string
		logFormat    string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Evaluate the configured network and emit captured layer data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a yaml run profile",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "path to an int8 .ctf tensor used as network input",
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write captured arrays here (- = stdout)",
				Value:       "-",
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "manifest",
				Usage:       "write a json manifest of emitted arrays here",
				Destination: &manifestPath,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "weight/input RNG seed",
				Value:       -1,
				Destination: &seed,
			},
			&cli.BoolFlag{
				Name:        "int4",
				Usage:       "pack expansion filters as int4",
				Destination: &int4,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "pretty or json",
				Destination: &logFormat,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			cfg, err := loadConfig(configPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load config: %v", err), 1)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if c.IsSet("int4") {
				cfg.Network.Int4Expansion = int4
			}
			if !c.IsSet("seed") && cfg.Seed != nil {
				seed = *cfg.Seed
			}

			log := newLogger(cfg.LogFormat, cfg.LogLevel)

			rules, err := parseRules(cfg.Capture)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: capture rules: %v", err), 1)
			}

			out := os.Stdout
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create %s: %v", outPath, err), 1)
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			bw := bufio.NewWriter(out)

			rec := capture.NewRecorder(bw, rules, capture.WithLogger(log))
			rctx := kernel.NewRunContext(log)

			net, err := model.Build(rctx, cfg.Network, seed, rec)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build network: %v", err), 1)
			}
			log.Info("network built",
				"layers", net.Layers(),
				"blocks", len(cfg.Network.Blocks),
				"seed", seed,
				"session", rec.SessionID())

			if inputPath != "" {
				data, err := readInputTensor(inputPath, net.Input().Shape.FlatSize())
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read input: %v", err), 1)
				}
				if err := net.SetInput(data); err != nil {
					return cli.Exit(fmt.Sprintf("error: set input: %v", err), 1)
				}
			}

			if err := net.Run(rctx); err != nil {
				return cli.Exit(fmt.Sprintf("error: run network: %v", err), 1)
			}
			if err := bw.Flush(); err != nil {
				return cli.Exit(fmt.Sprintf("error: flush output: %v", err), 1)
			}

			if manifestPath != "" {
				f, err := os.Create(manifestPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create %s: %v", manifestPath, err), 1)
				}
				defer func() { _ = f.Close() }()
				if err := rec.WriteManifest(f); err != nil {
					return cli.Exit(fmt.Sprintf("error: write manifest: %v", err), 1)
				}
			}

			m := rec.Manifest()
			log.Info("run complete", "arrays", len(m.Arrays))
			return nil
		},
	}
}

func newLogger(format, level string) logger.Logger {
	lvl := logger.ParseLevel(level)
	if format == "json" {
		return logger.JSON(os.Stderr, lvl)
	}
	return logger.Pretty(os.Stderr, lvl)
}

// readInputTensor loads an int8 .ctf payload with exactly n elements.
func readInputTensor(path string, n int) ([]int8, error) {
	f, err := ctf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if f.Header.DType != ctf.DTypeI8 {
		return nil, fmt.Errorf("%s: network input must be int8, got dtype %d", path, f.Header.DType)
	}
	if f.Elements() != n {
		return nil, fmt.Errorf("%s: has %d elements, network needs %d", path, f.Elements(), n)
	}
	payload := f.Payload()
	data := make([]int8, n)
	for i, b := range payload {
		data[i] = int8(b)
	}
	return data, nil
}
