package capture

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/samcharles93/convtrace/internal/tensor"
)

// ArrayInfo describes one emitted literal array.
type ArrayInfo struct {
	Name     string `json:"name"`
	DType    string `json:"dtype"`
	Shape    []int  `json:"shape"`
	Elements int    `json:"elements"`
}

// Manifest is the machine-readable index of a capture run, written next
// to the literal-array text so harness tooling can locate arrays
// without parsing C.
type Manifest struct {
	SessionID string      `json:"session_id"`
	CreatedAt time.Time   `json:"created_at"`
	Arrays    []ArrayInfo `json:"arrays"`
}

// Manifest returns a snapshot of everything emitted so far.
func (r *Recorder) Manifest() Manifest {
	m := Manifest{SessionID: r.sessionID, CreatedAt: r.created}
	m.Arrays = append(m.Arrays, r.arrays...)
	return m
}

// WriteManifest encodes the manifest as indented JSON.
func (r *Recorder) WriteManifest(w io.Writer) error {
	data, err := json.MarshalIndent(r.Manifest(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (r *Recorder) recordTensor(name string, t *tensor.Tensor) {
	r.arrays = append(r.arrays, ArrayInfo{
		Name:     name,
		DType:    t.DType.String(),
		Shape:    append([]int(nil), t.Shape...),
		Elements: t.Shape.FlatSize(),
	})
}

func (r *Recorder) recordArray(name string, d tensor.DType, shape []int) {
	n := 1
	for _, v := range shape {
		n *= v
	}
	r.arrays = append(r.arrays, ArrayInfo{
		Name:     name,
		DType:    d.String(),
		Shape:    shape,
		Elements: n,
	})
}
