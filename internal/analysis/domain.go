package analysis

import (
	"fmt"

	"github.com/alawein/maglogic/internal/mag"
)

// DefaultReferences are the six axis directions used to classify cell
// orientation when the caller does not supply its own set.
var DefaultReferences = []mag.Vector3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// DomainOptions selects how cells are classified before segmentation.
// With References set, each normalized cell vector is assigned to the
// closest reference direction (largest dot product; exact ties go to the
// lowest-indexed reference). With UseComponent set, cells are classified
// by the sign of one component against Threshold instead.
type DomainOptions struct {
	References   []mag.Vector3
	UseComponent bool
	Component    int
	Threshold    float64
}

// DomainAnalysis is the output of one segmentation pass.
type DomainAnalysis struct {
	DomainCount       int     `json:"domain_count"`
	AverageDomainSize float64 `json:"average_domain_size"` // cells per domain
	WallDensity       float64 `json:"domain_wall_density"` // mismatched adjacent pairs / total pairs
	Labels            []int   `json:"label_map"`           // per-cell connected-component id
	Classes           []int   `json:"-"`                   // per-cell orientation class
}

// AnalyzeDomains classifies every cell into an orientation class, then
// computes connected components over same-class cells: 6-connected in 3D,
// which degenerates to 4-connected for single-layer grids. NaN, Inf, or
// zero-norm moments are terminal errors, never silently excluded.
func AnalyzeDomains(g *mag.FieldGrid, opts DomainOptions) (*DomainAnalysis, error) {
	if g.ValueDim < 3 {
		return nil, fmt.Errorf("analysis: domain segmentation needs 3-component cells, grid has valuedim %d", g.ValueDim)
	}
	refs := opts.References
	if !opts.UseComponent && len(refs) == 0 {
		refs = DefaultReferences
	}
	if opts.UseComponent && (opts.Component < 0 || opts.Component >= g.ValueDim) {
		return nil, fmt.Errorf("analysis: component %d out of range for valuedim %d", opts.Component, g.ValueDim)
	}

	n := g.Cells()
	classes := make([]int, n)
	for i := 0; i < n; i++ {
		v := g.VectorAt(i)
		if !v.IsValid() {
			return nil, &mag.ParseError{Row: i + 1, Detail: "NaN or Inf moment in domain analysis", Wrapped: mag.ErrInvalidFieldValue}
		}
		if opts.UseComponent {
			if g.At(i)[opts.Component] >= opts.Threshold {
				classes[i] = 0
			} else {
				classes[i] = 1
			}
			continue
		}
		u := v.Normalize()
		if u == (mag.Vector3{}) {
			return nil, &mag.ParseError{Row: i + 1, Detail: "zero-norm moment in domain analysis", Wrapped: mag.ErrInvalidFieldValue}
		}
		best, bestDot := 0, refs[0].Dot(u)
		for r := 1; r < len(refs); r++ {
			// Strict improvement only: ties stay with the lowest index.
			if d := refs[r].Dot(u); d > bestDot {
				best, bestDot = r, d
			}
		}
		classes[i] = best
	}

	labels, count := connectedComponents(g, classes)

	da := &DomainAnalysis{
		DomainCount: count,
		Labels:      labels,
		Classes:     classes,
	}
	if count > 0 {
		da.AverageDomainSize = float64(n) / float64(count)
	}
	da.WallDensity = wallDensity(g, labels)
	return da, nil
}

// connectedComponents labels same-class regions with an iterative BFS over
// the 6-neighborhood (4-neighborhood for nz == 1 grids, since the z links
// simply do not exist).
func connectedComponents(g *mag.FieldGrid, classes []int) ([]int, int) {
	n := g.Cells()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	queue := make([]int, 0, 64)
	next := 0
	for seed := 0; seed < n; seed++ {
		if labels[seed] >= 0 {
			continue
		}
		labels[seed] = next
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			ix, iy, iz := g.Coords(cur)
			forEachNeighbor(g, ix, iy, iz, func(nb int) {
				if labels[nb] < 0 && classes[nb] == classes[cur] {
					labels[nb] = next
					queue = append(queue, nb)
				}
			})
		}
		next++
	}
	return labels, next
}

func forEachNeighbor(g *mag.FieldGrid, ix, iy, iz int, fn func(i int)) {
	if ix > 0 {
		fn(g.Index(ix-1, iy, iz))
	}
	if ix < g.Nx-1 {
		fn(g.Index(ix+1, iy, iz))
	}
	if iy > 0 {
		fn(g.Index(ix, iy-1, iz))
	}
	if iy < g.Ny-1 {
		fn(g.Index(ix, iy+1, iz))
	}
	if iz > 0 {
		fn(g.Index(ix, iy, iz-1))
	}
	if iz < g.Nz-1 {
		fn(g.Index(ix, iy, iz+1))
	}
}

// wallDensity is the fraction of adjacent cell pairs whose labels differ.
// Each pair is counted once (positive-direction links only).
func wallDensity(g *mag.FieldGrid, labels []int) float64 {
	pairs, walls := 0, 0
	for iz := 0; iz < g.Nz; iz++ {
		for iy := 0; iy < g.Ny; iy++ {
			for ix := 0; ix < g.Nx; ix++ {
				i := g.Index(ix, iy, iz)
				if ix < g.Nx-1 {
					pairs++
					if labels[i] != labels[g.Index(ix+1, iy, iz)] {
						walls++
					}
				}
				if iy < g.Ny-1 {
					pairs++
					if labels[i] != labels[g.Index(ix, iy+1, iz)] {
						walls++
					}
				}
				if iz < g.Nz-1 {
					pairs++
					if labels[i] != labels[g.Index(ix, iy, iz+1)] {
						walls++
					}
				}
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(walls) / float64(pairs)
}
