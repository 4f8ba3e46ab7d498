package capture

import (
	"fmt"
	"io"

	"github.com/samcharles93/convtrace/internal/tensor"
)

// Literal-array emission. The output is valid C source meant to be
// pasted into a golden-reference harness, so the formatting (type
// names, wrap widths, trailing commas) is part of the contract.

const bannerRule = "// ======================================================================"

// WriteTensor writes a shape comment followed by a flat literal array
// for t. int8 payloads are zero-padded hex bytes, 16 per line; int16
// are hex words, 16 per line; int32/int64 (bias) are decimal, 8 per
// line; float32 is decimal, 8 per line; packed int4 filters are dumped
// as the raw packed bytes.
func WriteTensor(w io.Writer, name string, t *tensor.Tensor) {
	writeShapeComment(w, name, t.Shape)
	switch t.DType {
	case tensor.I8:
		writeArray(w, "int8_t", name, t.Shape.FlatSize(), 16, func(i int) string {
			return fmt.Sprintf("0x%02x", uint8(t.Int8()[i]))
		})
	case tensor.I16:
		writeArray(w, "int16_t", name, t.Shape.FlatSize(), 16, func(i int) string {
			return fmt.Sprintf("0x%04x", uint16(t.Int16()[i]))
		})
	case tensor.I32:
		writeArray(w, "int32_t", name, t.Shape.FlatSize(), 8, func(i int) string {
			return fmt.Sprintf("%d", t.Int32()[i])
		})
	case tensor.I64:
		writeArray(w, "int64_t", name, t.Shape.FlatSize(), 8, func(i int) string {
			return fmt.Sprintf("%d", t.Int64()[i])
		})
	case tensor.F32:
		writeArray(w, "float", name, t.Shape.FlatSize(), 8, func(i int) string {
			return fmt.Sprintf("%g", t.Float32()[i])
		})
	case tensor.I4:
		packed := t.Packed()
		writeArray(w, "uint8_t", name, len(packed), 16, func(i int) string {
			return fmt.Sprintf("0x%02x", packed[i])
		})
	}
}

// WriteQuantParams writes the requantization parameter block: the two
// zero-point scalars in decimal, the per-channel multipliers as
// zero-padded hex words, 8 per line, and the per-channel shifts in
// decimal, 16 per line. Multipliers and shifts keep channel order.
func WriteQuantParams(w io.Writer, prefix string, inputZeroPoint, outputZeroPoint int32, mult, shift []int32) {
	fmt.Fprintf(w, "\n// --- %s: REQUANTIZATION PARAMS ---\n", prefix)
	fmt.Fprintf(w, "const int32_t %s_input_offset = %d;\n", prefix, inputZeroPoint)
	fmt.Fprintf(w, "const int32_t %s_output_offset = %d;\n\n", prefix, outputZeroPoint)

	fmt.Fprintf(w, "// Per-channel output multipliers:\n")
	fmt.Fprintf(w, "const int32_t %s_output_multiplier[] = {\n    ", prefix)
	for i, m := range mult {
		fmt.Fprintf(w, "0x%08x, ", uint32(m))
		if (i+1)%8 == 0 && i+1 < len(mult) {
			fmt.Fprint(w, "\n    ")
		}
	}
	fmt.Fprint(w, "\n};\n\n")

	fmt.Fprintf(w, "// Per-channel output shifts:\n")
	fmt.Fprintf(w, "const int32_t %s_output_shift[] = {\n    ", prefix)
	for i, s := range shift {
		fmt.Fprintf(w, "%d, ", s)
		if (i+1)%16 == 0 && i+1 < len(shift) {
			fmt.Fprint(w, "\n    ")
		}
	}
	fmt.Fprint(w, "\n};\n")
}

func writeShapeComment(w io.Writer, name string, shape tensor.Shape) {
	fmt.Fprintf(w, "// Tensor '%s', Shape: [", name)
	for i, d := range shape {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%d", d)
	}
	fmt.Fprint(w, "]\n")
}

func writeArray(w io.Writer, ctype, name string, n, perLine int, elem func(i int) string) {
	fmt.Fprintf(w, "const %s %s[] = {", ctype, name)
	for i := 0; i < n; i++ {
		if i%perLine == 0 {
			fmt.Fprint(w, "\n    ")
		}
		fmt.Fprintf(w, "%s, ", elem(i))
	}
	fmt.Fprint(w, "\n};\n\n")
}
