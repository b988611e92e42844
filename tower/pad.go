// Package tower implements the Superposition Tower puzzle: a row of pads
// holding simplified single-qubit states that the player must turn into
// superposition and walk across in a fixed order without the path
// decohering.
package tower

import (
	"fmt"
	"math"
	"math/rand"
)

// PadState is the simplified qubit state of a pad.
type PadState int

const (
	Up PadState = iota
	Down
	Superposition
)

func (s PadState) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	case Superposition:
		return "superposition"
	default:
		return fmt.Sprintf("PadState(%d)", int(s))
	}
}

// Label returns the ket notation shown to players.
func (s PadState) Label() string {
	switch s {
	case Up:
		return "|0⟩"
	case Down:
		return "|1⟩"
	case Superposition:
		return "(|0⟩ + |1⟩)/√2"
	default:
		return ""
	}
}

func (s PadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PadState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*s = Up
	case "down":
		*s = Down
	case "superposition":
		*s = Superposition
	default:
		return fmt.Errorf("unknown pad state %q", text)
	}
	return nil
}

// Pad is one cell of the puzzle row. ID is the pad's index on the board.
type Pad struct {
	ID        int      `json:"id"`
	State     PadState `json:"state"`
	Phase     float64  `json:"phase"`
	Amplitude float64  `json:"amplitude"`
	Locked    bool     `json:"locked"`
	Glowing   bool     `json:"glowing"`
}

// Walkable reports whether a player may step onto the pad.
func (p Pad) Walkable() bool {
	return p.State == Superposition
}

var invSqrt2 = 1 / math.Sqrt2

// Hadamard applies the gate to a pad. Up and Down move into superposition
// with phase 0 and π respectively; a superposition is measured and lands on
// Up or Down with equal probability. Locked pads are returned unchanged.
func Hadamard(p Pad, rng *rand.Rand) Pad {
	if p.Locked {
		return p
	}

	switch p.State {
	case Up:
		p.State = Superposition
		p.Phase = 0
		p.Amplitude = invSqrt2
	case Down:
		p.State = Superposition
		p.Phase = math.Pi
		p.Amplitude = invSqrt2
	default:
		if rng.Intn(2) == 0 {
			p.State = Up
		} else {
			p.State = Down
		}
		p.Phase = 0
		p.Amplitude = 1.0
	}
	return p
}
