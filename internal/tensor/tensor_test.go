package tensor

import "testing"

func TestDTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    DType
		want string
	}{
		{None, "none"},
		{F32, "float32"},
		{I8, "int8"},
		{I16, "int16"},
		{I32, "int32"},
		{I64, "int64"},
		{I4, "int4"},
		{DType(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.d.String(); got != tc.want {
			t.Errorf("DType(%d).String(): expected %q, got %q", tc.d, tc.want, got)
		}
	}
}

func TestPackedBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    DType
		n    int
		want int
	}{
		{I8, 10, 10},
		{I16, 10, 20},
		{I32, 10, 40},
		{I64, 10, 80},
		{F32, 10, 40},
		{I4, 10, 5},
		{I4, 11, 6}, // odd count rounds up
		{I4, 1, 1},
		{I4, 0, 0},
	}
	for _, tc := range tests {
		if got := tc.d.PackedBytes(tc.n); got != tc.want {
			t.Errorf("%s.PackedBytes(%d): expected %d, got %d", tc.d, tc.n, tc.want, got)
		}
	}
}

func TestShapeFlatSize(t *testing.T) {
	t.Parallel()

	if got := (Shape{1, 4, 4, 8}).FlatSize(); got != 128 {
		t.Fatalf("FlatSize: expected 128, got %d", got)
	}
	if got := (Shape{}).FlatSize(); got != 1 {
		t.Fatalf("empty shape FlatSize: expected 1, got %d", got)
	}
}

func TestShapeDim(t *testing.T) {
	t.Parallel()

	s := Shape{2, 3, 5}
	if got := s.Dim(1); got != 3 {
		t.Fatalf("Dim(1): expected 3, got %d", got)
	}
	// Missing axes broadcast to 1.
	if got := s.Dim(3); got != 1 {
		t.Fatalf("Dim(3): expected 1, got %d", got)
	}
	if got := s.Dim(-1); got != 1 {
		t.Fatalf("Dim(-1): expected 1, got %d", got)
	}
}

func TestShapeIndex4(t *testing.T) {
	t.Parallel()

	s := Shape{2, 3, 4, 5}
	// Row-major: last axis fastest.
	if got := s.Index4(0, 0, 0, 0); got != 0 {
		t.Fatalf("Index4(0,0,0,0): expected 0, got %d", got)
	}
	if got := s.Index4(0, 0, 0, 4); got != 4 {
		t.Fatalf("Index4(0,0,0,4): expected 4, got %d", got)
	}
	if got := s.Index4(0, 0, 1, 0); got != 5 {
		t.Fatalf("Index4(0,0,1,0): expected 5, got %d", got)
	}
	if got := s.Index4(0, 1, 0, 0); got != 20 {
		t.Fatalf("Index4(0,1,0,0): expected 20, got %d", got)
	}
	if got := s.Index4(1, 2, 3, 4); got != 119 {
		t.Fatalf("Index4(1,2,3,4): expected 119, got %d", got)
	}
}

func TestShapeEqual(t *testing.T) {
	t.Parallel()

	if !(Shape{1, 2, 3}).Equal(Shape{1, 2, 3}) {
		t.Error("identical shapes should be equal")
	}
	if (Shape{1, 2, 3}).Equal(Shape{1, 2}) {
		t.Error("different ranks should not be equal")
	}
	if (Shape{1, 2, 3}).Equal(Shape{1, 2, 4}) {
		t.Error("different extents should not be equal")
	}
}

func TestNewInt8LengthMismatchPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on buffer/shape mismatch")
		}
	}()
	NewInt8(Shape{1, 2, 2, 2}, make([]int8, 7))
}

func TestNewInt4PackedLength(t *testing.T) {
	t.Parallel()

	// 9 elements pack into 5 bytes.
	tt := NewInt4(Shape{1, 1, 1, 9}, make([]byte, 5))
	if tt.DType != I4 {
		t.Fatalf("expected I4 tensor, got %s", tt.DType)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on wrong packed length")
		}
	}()
	NewInt4(Shape{1, 1, 1, 9}, make([]byte, 9))
}

func TestAccessorWrongTypePanics(t *testing.T) {
	t.Parallel()

	tt := NewInt8(Shape{4}, make([]int8, 4))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading int8 tensor as int32")
		}
	}()
	_ = tt.Int32()
}
