package tower

import (
	"fmt"
	"math"
	"math/rand"
)

// Generator lays out solvable boards. It owns its random source, so a seeded
// generator produces the same boards every run.
type Generator struct {
	cfg Config
	rng *rand.Rand

	fallbacks int
}

func NewGenerator(cfg Config, rng *rand.Rand) *Generator {
	return &Generator{cfg: cfg, rng: rng}
}

// Fallbacks counts boards that came from the deterministic layout.
func (g *Generator) Fallbacks() int {
	return g.fallbacks
}

func (g *Generator) level(level int) (Level, error) {
	if level < 0 || level >= len(g.cfg.Levels) {
		return Level{}, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	return g.cfg.Levels[level], nil
}

// Generate returns a reachable board for level. Random layouts are tried up
// to MaxGenerateAttempts times before the deterministic layout is used.
func (g *Generator) Generate(level int, hints bool) (*Board, error) {
	lv, err := g.level(level)
	if err != nil {
		return nil, err
	}

	for i := 0; i < g.cfg.MaxGenerateAttempts; i++ {
		b := g.random(level, lv, hints)
		if b.IsReachable() {
			return b, nil
		}
	}

	g.fallbacks++
	return g.deterministic(level, lv, hints), nil
}

// ResetBoard replaces a board after a collapse or a manual reset.
func (g *Generator) ResetBoard(level int, hints bool) (*Board, error) {
	return g.Generate(level, hints)
}

// Deterministic returns the closed-form layout: alternating Up/Down, phase 0
// on every required pad and π/4 elsewhere.
func (g *Generator) Deterministic(level int, hints bool) (*Board, error) {
	lv, err := g.level(level)
	if err != nil {
		return nil, err
	}
	return g.deterministic(level, lv, hints), nil
}

func (g *Generator) random(level int, lv Level, hints bool) *Board {
	b := g.newBoard(level, lv)
	for i := range b.Pads {
		pos := lv.Position(i)
		required := pos >= 0

		var phase float64
		if required && len(lv.Required) > 1 {
			phase = math.Mod(float64(pos)*math.Pi/4, 2*math.Pi)
		} else {
			phase = g.rng.Float64() * 2 * math.Pi
		}

		state := Up
		if g.rng.Intn(2) == 1 {
			state = Down
		}

		b.Pads[i] = Pad{
			ID:        i,
			State:     state,
			Phase:     phase,
			Amplitude: 1.0,
			Glowing:   required && hints,
		}
	}
	return b
}

func (g *Generator) deterministic(level int, lv Level, hints bool) *Board {
	b := g.newBoard(level, lv)
	for i := range b.Pads {
		required := lv.Contains(i)

		state := Up
		if i%2 == 1 {
			state = Down
		}
		phase := math.Pi / 4
		if required {
			phase = 0
		}

		b.Pads[i] = Pad{
			ID:        i,
			State:     state,
			Phase:     phase,
			Amplitude: 1.0,
			Glowing:   required && hints,
		}
	}
	return b
}

func (g *Generator) newBoard(level int, lv Level) *Board {
	return &Board{
		Level:            level,
		Required:         append([]int(nil), lv.Required...),
		Pads:             make([]Pad, g.cfg.PadCount),
		PlayerPosition:   g.cfg.StartingPosition,
		SelectedPath:     []int{},
		decoherenceTicks: g.cfg.DecoherenceTicks,
	}
}
