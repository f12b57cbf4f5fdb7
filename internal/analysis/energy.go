package analysis

import (
	"fmt"
	"sort"

	"github.com/alawein/maglogic/internal/mag"
)

// EnergyAnalysis aggregates per-term energy contributions. Terms are
// whatever the input carried (exchange, demag, zeeman, anisotropy, thermal,
// ...); no fixed subset is assumed. Totals are volume integrals in J,
// averages are per-cell energy densities in J/m^3.
type EnergyAnalysis struct {
	Terms     []string                   `json:"terms_found"`
	Totals    map[string]float64         `json:"totals"`
	Averages  map[string]float64         `json:"averages"`
	Total     float64                    `json:"combined_total"`
	PerRegion map[int]map[string]float64 `json:"per_region_totals,omitempty"`
}

// kahanSum accumulates with compensated summation, so aggregating many
// small cell contributions across large grids does not lose low-order bits.
type kahanSum struct {
	sum, c float64
}

func (k *kahanSum) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// AggregateEnergyGrids aggregates per-cell energy-density channels. Each
// grid in grids is one named term and must be scalar (valuedim 1) with the
// same dimensions as every other. labels, when non-nil, is a per-cell
// region id array (from the domain analyzer or explicit region metadata)
// and enables the per-region breakdown.
func AggregateEnergyGrids(grids map[string]*mag.FieldGrid, labels []int) (*EnergyAnalysis, error) {
	if len(grids) == 0 {
		return &EnergyAnalysis{
			Terms:    []string{},
			Totals:   map[string]float64{},
			Averages: map[string]float64{},
		}, nil
	}

	var ref *mag.FieldGrid
	for _, g := range grids {
		ref = g
		break
	}
	cells := ref.Cells()
	for term, g := range grids {
		if g.ValueDim != 1 {
			return nil, fmt.Errorf("analysis: energy term %q has valuedim %d, want scalar density", term, g.ValueDim)
		}
		if g.Nx != ref.Nx || g.Ny != ref.Ny || g.Nz != ref.Nz {
			return nil, &mag.ParseError{
				Field:   term,
				Detail:  "energy channels have mismatched grid dimensions",
				Wrapped: mag.ErrFormatInconsistent,
			}
		}
	}
	if labels != nil && len(labels) != cells {
		return nil, fmt.Errorf("analysis: region labels cover %d cells, grid has %d", len(labels), cells)
	}

	ea := &EnergyAnalysis{
		Totals:   make(map[string]float64, len(grids)),
		Averages: make(map[string]float64, len(grids)),
	}
	if labels != nil {
		ea.PerRegion = map[int]map[string]float64{}
	}

	var combined kahanSum
	for term, g := range grids {
		vol := g.CellVolume()
		var sum kahanSum
		regional := map[int]*kahanSum{}

		for i := 0; i < cells; i++ {
			v := g.Data[i] * g.ValueMultiplier
			sum.add(v)
			if labels != nil {
				ks := regional[labels[i]]
				if ks == nil {
					ks = &kahanSum{}
					regional[labels[i]] = ks
				}
				ks.add(v)
			}
		}

		total := sum.sum * vol
		ea.Totals[term] = total
		ea.Averages[term] = sum.sum / float64(cells)
		combined.add(total)

		for region, ks := range regional {
			if ea.PerRegion[region] == nil {
				ea.PerRegion[region] = map[string]float64{}
			}
			ea.PerRegion[region][term] = ks.sum * vol
		}
	}
	ea.Total = combined.sum

	ea.Terms = make([]string, 0, len(grids))
	for term := range grids {
		ea.Terms = append(ea.Terms, term)
	}
	sort.Strings(ea.Terms)
	return ea, nil
}

// AggregateEnergyTotals builds an EnergyAnalysis from externally supplied
// per-term total energies (e.g. one row of a scalar time-series log).
// Averages are left unset since no cell geometry is available.
func AggregateEnergyTotals(totals map[string]float64) *EnergyAnalysis {
	ea := &EnergyAnalysis{
		Totals:   make(map[string]float64, len(totals)),
		Averages: map[string]float64{},
	}
	var combined kahanSum
	for term, v := range totals {
		ea.Totals[term] = v
		combined.add(v)
		ea.Terms = append(ea.Terms, term)
	}
	ea.Total = combined.sum
	sort.Strings(ea.Terms)
	return ea
}
