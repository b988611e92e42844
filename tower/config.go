package tower

import (
	"errors"
	"fmt"
)

// Config describes one tower. Every duration is counted in game ticks; the
// caller decides how long a tick lasts.
type Config struct {
	PadCount            int
	StartingPosition    int
	TimePerFloorTicks   int // zero disables the floor timer
	DecoherenceTicks    int
	CollapseDelayTicks  int
	MaxGenerateAttempts int
	Levels              []Level
	Scoring             Scoring
}

func DefaultConfig() Config {
	return Config{
		PadCount:            5,
		StartingPosition:    2,
		TimePerFloorTicks:   180,
		DecoherenceTicks:    10,
		CollapseDelayTicks:  3,
		MaxGenerateAttempts: 10,
		Levels:              DefaultLevels,
		Scoring:             DefaultScoring,
	}
}

// Validate checks that every floor can be laid out on the configured row.
func (c Config) Validate() error {
	if c.PadCount <= 0 {
		return errors.New("pad count must be positive")
	}
	if c.StartingPosition < 0 || c.StartingPosition >= c.PadCount {
		return fmt.Errorf("starting position %d outside 0..%d", c.StartingPosition, c.PadCount-1)
	}
	if c.DecoherenceTicks < 0 || c.CollapseDelayTicks < 0 || c.TimePerFloorTicks < 0 {
		return errors.New("tick counts must not be negative")
	}
	if c.MaxGenerateAttempts < 0 {
		return errors.New("max generate attempts must not be negative")
	}
	if len(c.Levels) == 0 {
		return errors.New("no levels configured")
	}
	for i, lv := range c.Levels {
		if len(lv.Required) == 0 {
			return fmt.Errorf("level %d: empty required sequence", i)
		}
		seen := make(map[int]bool, len(lv.Required))
		for _, id := range lv.Required {
			if id < 0 || id >= c.PadCount {
				return fmt.Errorf("level %d: pad %d outside 0..%d", i, id, c.PadCount-1)
			}
			if seen[id] {
				return fmt.Errorf("level %d: pad %d repeated", i, id)
			}
			seen[id] = true
		}
	}
	return nil
}
