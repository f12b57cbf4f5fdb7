package analysis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alawein/maglogic/internal/mag"
)

// Result merges the output of one grid's analysis pass. It is derived from
// a FieldGrid but never aliases its buffers; the caller owns it and may
// serialize or discard it independently.
type Result struct {
	Domain   *DomainAnalysis   `json:"domain_analysis,omitempty"`
	Energy   *EnergyAnalysis   `json:"energy_analysis,omitempty"`
	Topology *TopologyAnalysis `json:"topological_analysis,omitempty"`
}

// Options bundles per-analyzer configuration for Analyze.
type Options struct {
	Domain   DomainOptions
	Topology TopologyOptions
	// EnergyGrids maps term names to scalar energy-density channels
	// matching the analyzed grid's dimensions. May be empty.
	EnergyGrids map[string]*mag.FieldGrid
}

// Analyze runs the domain, energy, and topological analyzers over one grid
// and merges their outputs. The energy analyzer receives the domain labels
// as its region partition. Any analyzer failure aborts the pass.
func Analyze(g *mag.FieldGrid, opts Options) (*Result, error) {
	res := &Result{}

	da, err := AnalyzeDomains(g, opts.Domain)
	if err != nil {
		return nil, fmt.Errorf("domain analysis: %w", err)
	}
	res.Domain = da

	if len(opts.EnergyGrids) > 0 {
		ea, err := AggregateEnergyGrids(opts.EnergyGrids, da.Labels)
		if err != nil {
			return nil, fmt.Errorf("energy analysis: %w", err)
		}
		res.Energy = ea
	}

	ta, err := AnalyzeTopology(g, opts.Topology)
	if err != nil {
		return nil, fmt.Errorf("topological analysis: %w", err)
	}
	res.Topology = ta

	return res, nil
}

// ToJSON renders the result as indented JSON. Every array-typed value maps
// to a plain nested list, so the output is directly consumable by the
// reporting layer.
func ToJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteJSON writes the result to a JSON file.
func WriteJSON(r *Result, filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// FromJSON parses a serialized result.
func FromJSON(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}
