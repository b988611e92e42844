package tower

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Level is one floor of the tower.
type Level struct {
	Required    []int  `yaml:"required" json:"required"`
	Description string `yaml:"description" json:"description"`
}

// Contains reports whether id is part of the required sequence.
func (l Level) Contains(id int) bool {
	return l.Position(id) >= 0
}

// Position returns the index of id in the required sequence, or -1.
func (l Level) Position(id int) int {
	for i, r := range l.Required {
		if r == id {
			return i
		}
	}
	return -1
}

// DefaultLevels are the five floors of the Superposition Tower.
var DefaultLevels = []Level{
	{Required: []int{2}, Description: "Create superposition in the center pad"},
	{Required: []int{1, 3}, Description: "Two adjacent superposition states for constructive interference"},
	{Required: []int{0, 2, 4}, Description: "Alternating pattern creates stable quantum bridge"},
	{Required: []int{1, 2, 3}, Description: "Three consecutive pads form perfect interference pattern"},
	{Required: []int{0, 1, 3, 4}, Description: "Four-pad configuration for maximum quantum coherence"},
}

type levelFile struct {
	Floors []Level `yaml:"floors"`
}

// ParseLevels decodes a floor pack:
//
//	floors:
//	  - required: [2]
//	    description: Create superposition in the center pad
func ParseLevels(data []byte) ([]Level, error) {
	var f levelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode floor pack: %w", err)
	}
	if len(f.Floors) == 0 {
		return nil, errors.New("floor pack has no floors")
	}
	return f.Floors, nil
}

// LoadLevels reads a floor pack from disk.
func LoadLevels(path string) ([]Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLevels(data)
}
