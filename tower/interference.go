package tower

import (
	"fmt"
	"math"
)

// Interference classifies the phase relationship of two pads.
type Interference int

const (
	Constructive Interference = iota
	Destructive
)

func (i Interference) String() string {
	if i == Constructive {
		return "constructive"
	}
	return "destructive"
}

func (i Interference) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Interference) UnmarshalText(text []byte) error {
	switch string(text) {
	case "constructive":
		*i = Constructive
	case "destructive":
		*i = Destructive
	default:
		return fmt.Errorf("unknown interference %q", text)
	}
	return nil
}

// PhaseInterference is constructive when the phases differ by less than π/2,
// or by more than 3π/2 once wrapped around the circle.
func PhaseInterference(a, b float64) Interference {
	delta := math.Abs(a - b)
	if delta < math.Pi/2 || delta > 3*math.Pi/2 {
		return Constructive
	}
	return Destructive
}

// Classify returns the interference between two pads.
func Classify(a, b Pad) Interference {
	return PhaseInterference(a.Phase, b.Phase)
}

// phaseOf treats ids off the board as phase 0.
func phaseOf(pads []Pad, id int) float64 {
	if id < 0 || id >= len(pads) {
		return 0
	}
	return pads[id].Phase
}

// InterferenceBetween classifies the pads with the given ids.
func InterferenceBetween(pads []Pad, a, b int) Interference {
	return PhaseInterference(phaseOf(pads, a), phaseOf(pads, b))
}

// IsCoherent reports whether every consecutive pair along path interferes
// constructively. Paths shorter than two pads are coherent.
func IsCoherent(pads []Pad, path []int) bool {
	for i := 0; i+1 < len(path); i++ {
		if InterferenceBetween(pads, path[i], path[i+1]) == Destructive {
			return false
		}
	}
	return true
}

// IsReachable is the static solvability check on the configured phases: every
// consecutive pair of required pads must be constructive. A required id that
// is not on the board makes the level unreachable.
func IsReachable(pads []Pad, required []int) bool {
	for _, id := range required {
		if id < 0 || id >= len(pads) {
			return false
		}
	}
	return IsCoherent(pads, required)
}
