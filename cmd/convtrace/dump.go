package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/tensor"
	"github.com/samcharles93/convtrace/pkg/ctf"
)

func dumpCmd() *cli.Command {
	var name string

	return &cli.Command{
		Name:      "dump",
		Usage:     "Print a .ctf tensor as a C literal array",
		ArgsUsage: "<file.ctf>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "array name (default: file basename)",
				Destination: &name,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx
			if c.Args().Len() != 1 {
				return cli.Exit("error: dump needs exactly one .ctf path", 1)
			}
			path := c.Args().First()

			f, err := ctf.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open %s: %v", path, err), 1)
			}
			defer func() { _ = f.Close() }()

			t, err := tensorFromCTF(f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %s: %v", path, err), 1)
			}

			if name == "" {
				base := filepath.Base(path)
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			capture.WriteTensor(os.Stdout, name, t)
			return nil
		},
	}
}

// tensorFromCTF decodes the little-endian payload into a typed tensor.
func tensorFromCTF(f *ctf.File) (*tensor.Tensor, error) {
	shape := make(tensor.Shape, len(f.Dims))
	for i, d := range f.Dims {
		shape[i] = int(d)
	}
	n := f.Elements()
	payload := f.Payload()

	switch f.Header.DType {
	case ctf.DTypeI8:
		data := make([]int8, n)
		for i, b := range payload {
			data[i] = int8(b)
		}
		return tensor.NewInt8(shape, data), nil
	case ctf.DTypeI16:
		data := make([]int16, n)
		for i := range data {
			data[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
		}
		return tensor.NewInt16(shape, data), nil
	case ctf.DTypeI32:
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return tensor.NewInt32(shape, data), nil
	case ctf.DTypeI64:
		data := make([]int64, n)
		for i := range data {
			data[i] = int64(binary.LittleEndian.Uint64(payload[i*8:]))
		}
		return tensor.NewInt64(shape, data), nil
	case ctf.DTypeF32:
		data := make([]float32, n)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return tensor.NewFloat32(shape, data), nil
	case ctf.DTypeI4:
		packed := make([]byte, len(payload))
		copy(packed, payload)
		return tensor.NewInt4(shape, packed), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %d", f.Header.DType)
	}
}
