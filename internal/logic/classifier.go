// Package logic reduces a region-averaged magnetization vector to a
// ternary logic symbol for gate-verification use.
package logic

import "github.com/alawein/maglogic/internal/mag"

// State is a ternary logic symbol.
type State int

const (
	StateUndefined State = iota
	State0
	State1
)

func (s State) String() string {
	switch s {
	case State0:
		return "0"
	case State1:
		return "1"
	default:
		return "undefined"
	}
}

// Classifier maps an averaged magnetization vector to a State by
// thresholding one component: component > +Threshold reads as logic 1,
// component < -Threshold as logic 0, anything else (the boundary values
// included) as undefined.
//
// The default +/-0.5 rule on the x component is a calibration policy for
// the gate geometries this package was built to verify, not a physical
// law: other gate designs override Component and Threshold per device.
type Classifier struct {
	Component int
	Threshold float64
}

// DefaultClassifier returns the +/-0.5 x-component calibration.
func DefaultClassifier() Classifier {
	return Classifier{Component: 0, Threshold: 0.5}
}

// Classify applies the threshold rule to one averaged vector. The
// inequalities are strict: a component exactly at the threshold is
// undefined.
func (c Classifier) Classify(avg mag.Vector3) State {
	v := avg[c.Component]
	switch {
	case v > c.Threshold:
		return State1
	case v < -c.Threshold:
		return State0
	default:
		return StateUndefined
	}
}

// ClassifyRegion averages the cells of one labeled region and classifies
// the result. The second return is false when the region has no cells.
func (c Classifier) ClassifyRegion(g *mag.FieldGrid, labels []int, region int) (State, bool) {
	avg, n := g.RegionAverage(labels, region)
	if n == 0 {
		return StateUndefined, false
	}
	return c.Classify(avg), true
}
