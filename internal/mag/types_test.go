package mag

import (
	"errors"
	"math"
	"testing"
)

func TestVector3_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Vector3
		want Vector3
	}{
		{"unit x", Vector3{1, 0, 0}, Vector3{1, 0, 0}},
		{"scaled", Vector3{0, 3, 4}, Vector3{0, 0.6, 0.8}},
		{"zero", Vector3{0, 0, 0}, Vector3{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			for c := 0; c < 3; c++ {
				if math.Abs(got[c]-tt.want[c]) > 1e-12 {
					t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
					break
				}
			}
		})
	}
}

func TestVector3_IsValid(t *testing.T) {
	if !(Vector3{1, 2, 3}).IsValid() {
		t.Error("finite vector should be valid")
	}
	if (Vector3{1, math.NaN(), 0}).IsValid() {
		t.Error("NaN component should be invalid")
	}
	if (Vector3{math.Inf(1), 0, 0}).IsValid() {
		t.Error("Inf component should be invalid")
	}
}

func uniformGrid(nx, ny, nz int, v Vector3) *FieldGrid {
	g := &FieldGrid{
		Nx: nx, Ny: ny, Nz: nz,
		CellSize:        [3]float64{1e-9, 1e-9, 1e-9},
		ValueDim:        3,
		ValueMultiplier: 1,
		Data:            make([]float64, nx*ny*nz*3),
	}
	for i := 0; i < g.Cells(); i++ {
		copy(g.Data[i*3:], v[:])
	}
	return g
}

func TestFieldGrid_IndexRoundTrip(t *testing.T) {
	g := uniformGrid(4, 3, 2, Vector3{0, 0, 1})
	for i := 0; i < g.Cells(); i++ {
		ix, iy, iz := g.Coords(i)
		if g.Index(ix, iy, iz) != i {
			t.Fatalf("Coords/Index mismatch at %d: (%d,%d,%d)", i, ix, iy, iz)
		}
	}
}

func TestFieldGrid_Validate(t *testing.T) {
	g := uniformGrid(2, 2, 1, Vector3{0, 0, 1})
	if err := g.Validate(false); err != nil {
		t.Fatalf("valid grid: %v", err)
	}

	g.Data[4] = math.NaN()
	if err := g.Validate(false); !errors.Is(err, ErrInvalidFieldValue) {
		t.Errorf("NaN grid: got %v, want ErrInvalidFieldValue", err)
	}

	g = uniformGrid(2, 2, 1, Vector3{0, 0, 1})
	copy(g.Data[0:3], []float64{0, 0, 0})
	if err := g.Validate(false); !errors.Is(err, ErrInvalidFieldValue) {
		t.Errorf("zero row, zeros disallowed: got %v, want ErrInvalidFieldValue", err)
	}
	if err := g.Validate(true); err != nil {
		t.Errorf("zero row, zeros allowed: %v", err)
	}
}

func TestFieldGrid_RegionAverage(t *testing.T) {
	g := uniformGrid(2, 1, 1, Vector3{})
	copy(g.Data[0:3], []float64{1, 0, 0})
	copy(g.Data[3:6], []float64{-1, 0, 0})
	labels := []int{0, 1}

	avg, n := g.RegionAverage(labels, 0)
	if n != 1 || avg[0] != 1 {
		t.Errorf("region 0: avg=%v n=%d", avg, n)
	}
	avg, n = g.RegionAverage(labels, 1)
	if n != 1 || avg[0] != -1 {
		t.Errorf("region 1: avg=%v n=%d", avg, n)
	}
	_, n = g.RegionAverage(labels, 7)
	if n != 0 {
		t.Errorf("missing region: n=%d, want 0", n)
	}
}

func TestMetaValue(t *testing.T) {
	m := Number(3.5)
	if v, ok := m.AsNumber(); !ok || v != 3.5 {
		t.Errorf("AsNumber = %v, %v", v, ok)
	}
	if _, ok := m.AsString(); ok {
		t.Error("number should not read as string")
	}
	if m.Plain() != 3.5 {
		t.Errorf("Plain = %v", m.Plain())
	}

	s := Strings([]string{"a", "b"})
	if s.String() != "a b" {
		t.Errorf("String = %q", s.String())
	}
}
