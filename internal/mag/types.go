package mag

import (
	"fmt"
	"math"
)

// Vector3 is a single 3-component field value.
type Vector3 [3]float64

func (v Vector3) Dot(o Vector3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vector3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalize returns the unit vector, or the zero vector when the norm is
// below 1e-15 (degenerate moments are handled by the caller's validation).
func (v Vector3) Normalize() Vector3 {
	n := v.Norm()
	if n < 1e-15 {
		return Vector3{}
	}
	return Vector3{v[0] / n, v[1] / n, v[2] / n}
}

func (v Vector3) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FieldGrid is one parsed vector-field snapshot on a regular rectangular
// mesh. Data is dense, row-major with x fastest, then y, then z; each cell
// holds ValueDim components. A FieldGrid is immutable once parsed: analyzers
// read it concurrently and never write through it.
type FieldGrid struct {
	Nx, Ny, Nz      int
	CellSize        [3]float64 // physical spacing per axis, meters
	Origin          [3]float64 // physical coordinate of index (0,0,0)
	ValueDim        int
	ValueMultiplier float64
	Data            []float64 // len == Nx*Ny*Nz*ValueDim
	Meta            map[string]MetaValue
}

// Cells returns the total cell count Nx*Ny*Nz.
func (g *FieldGrid) Cells() int {
	return g.Nx * g.Ny * g.Nz
}

// Index converts grid coordinates to a flat cell index.
func (g *FieldGrid) Index(ix, iy, iz int) int {
	return ix + g.Nx*(iy+g.Ny*iz)
}

// Coords converts a flat cell index back to grid coordinates.
func (g *FieldGrid) Coords(i int) (ix, iy, iz int) {
	ix = i % g.Nx
	iy = (i / g.Nx) % g.Ny
	iz = i / (g.Nx * g.Ny)
	return
}

// At returns the components of cell i. The returned slice aliases the grid
// buffer; callers must not mutate it.
func (g *FieldGrid) At(i int) []float64 {
	return g.Data[i*g.ValueDim : (i+1)*g.ValueDim]
}

// VectorAt returns cell i as a Vector3. Panics if ValueDim < 3.
func (g *FieldGrid) VectorAt(i int) Vector3 {
	row := g.At(i)
	return Vector3{row[0], row[1], row[2]}
}

// CellVolume returns the physical volume of one cell in m^3.
func (g *FieldGrid) CellVolume() float64 {
	return g.CellSize[0] * g.CellSize[1] * g.CellSize[2]
}

// Position returns the physical coordinate of a cell center.
func (g *FieldGrid) Position(i int) [3]float64 {
	ix, iy, iz := g.Coords(i)
	return [3]float64{
		g.Origin[0] + float64(ix)*g.CellSize[0],
		g.Origin[1] + float64(iy)*g.CellSize[1],
		g.Origin[2] + float64(iz)*g.CellSize[2],
	}
}

// Validate scans the decoded data for values that make analysis meaningless.
// NaN or Inf anywhere is always an error. All-zero rows are an error unless
// allowZero is set: zero moments are legitimate only in cells the caller has
// declared as background/void, and must otherwise be flagged rather than
// silently accepted.
func (g *FieldGrid) Validate(allowZero bool) error {
	n := g.Cells()
	if len(g.Data) != n*g.ValueDim {
		return &ParseError{
			Detail:  fmt.Sprintf("data length %d, want %d cells x %d components", len(g.Data), n, g.ValueDim),
			Wrapped: ErrFormatTruncated,
		}
	}
	for i := 0; i < n; i++ {
		row := g.At(i)
		zero := true
		for _, c := range row {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return &ParseError{Row: i + 1, Detail: "NaN or Inf component", Wrapped: ErrInvalidFieldValue}
			}
			if c != 0 {
				zero = false
			}
		}
		if zero && !allowZero {
			return &ParseError{Row: i + 1, Detail: "zero-norm moment outside declared background", Wrapped: ErrInvalidFieldValue}
		}
	}
	return nil
}

// Average returns the arithmetic mean vector over all cells. Requires
// ValueDim >= 3; extra components are ignored.
func (g *FieldGrid) Average() Vector3 {
	var sum Vector3
	n := g.Cells()
	for i := 0; i < n; i++ {
		v := g.VectorAt(i)
		sum[0] += v[0]
		sum[1] += v[1]
		sum[2] += v[2]
	}
	if n == 0 {
		return Vector3{}
	}
	return Vector3{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
}

// RegionAverage returns the mean vector over cells whose label equals region,
// and the number of cells averaged. labels must be per-cell, as produced by
// the domain analyzer or supplied from region metadata.
func (g *FieldGrid) RegionAverage(labels []int, region int) (Vector3, int) {
	var sum Vector3
	count := 0
	n := g.Cells()
	for i := 0; i < n && i < len(labels); i++ {
		if labels[i] != region {
			continue
		}
		v := g.VectorAt(i)
		sum[0] += v[0]
		sum[1] += v[1]
		sum[2] += v[2]
		count++
	}
	if count == 0 {
		return Vector3{}, 0
	}
	f := float64(count)
	return Vector3{sum[0] / f, sum[1] / f, sum[2] / f}, count
}

// TimeSeries is one parsed scalar log: named columns of equal length in
// file order.
type TimeSeries struct {
	Names   []string // column order as in the file, after disambiguation
	Columns map[string][]float64
	Rows    int
	Meta    map[string]MetaValue
}

// Column returns the values for a named column.
func (ts *TimeSeries) Column(name string) ([]float64, bool) {
	vals, ok := ts.Columns[name]
	return vals, ok
}
