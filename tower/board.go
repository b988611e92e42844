package tower

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrUnknownPad   = errors.New("unknown pad")
	ErrUnknownLevel = errors.New("unknown level")
)

// Outcome is the result of a step.
type Outcome int

const (
	Continuing Outcome = iota
	Solved
	Failed
	// Ignored is returned for steps on locked pads, collapsed boards and
	// boards that are already solved.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Continuing:
		return "continuing"
	case Solved:
		return "solved"
	case Failed:
		return "failed"
	default:
		return "ignored"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, v := range []Outcome{Continuing, Solved, Failed, Ignored} {
		if v.String() == string(text) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Cause names why a board collapsed.
type Cause string

const (
	CauseClassicalState Cause = "classical_state"
	CauseWrongPath      Cause = "wrong_path"
	CauseWrongSequence  Cause = "wrong_sequence"
	CauseDecoherence    Cause = "decoherence"
	CauseFloorTimeout   Cause = "floor_timeout"
)

// Status is the board's position in the level state machine.
type Status int

const (
	StatusInitial Status = iota
	StatusInProgress
	StatusSolved
	StatusCollapsed
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusInProgress:
		return "in_progress"
	case StatusSolved:
		return "solved"
	default:
		return "collapsed"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, v := range []Status{StatusInitial, StatusInProgress, StatusSolved, StatusCollapsed} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// StepResult reports what a step did to the board.
type StepResult struct {
	Outcome      Outcome       `json:"outcome"`
	Cause        Cause         `json:"cause,omitempty"`
	Message      string        `json:"message,omitempty"`
	Interference *Interference `json:"interference,omitempty"`
	Unstable     bool          `json:"unstable"`
}

// Board is the live state of one level. It is owned by a single player and
// replaced wholesale on reset.
type Board struct {
	Level           int    `json:"level"`
	Required        []int  `json:"required"`
	Pads            []Pad  `json:"pads"`
	PlayerPosition  int    `json:"player_position"`
	SelectedPath    []int  `json:"selected_path"`
	Collapsed       bool   `json:"collapsed"`
	Cause           Cause  `json:"cause,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Unstable        bool   `json:"unstable"`
	DecoherenceLeft int    `json:"decoherence_left"`

	decoherenceTicks int
}

// Status derives the state machine position from the board fields.
func (b *Board) Status() Status {
	switch {
	case b.Collapsed:
		return StatusCollapsed
	case b.IsSolved():
		return StatusSolved
	case len(b.SelectedPath) > 0:
		return StatusInProgress
	default:
		return StatusInitial
	}
}

// IsSolved reports whether the full sequence has been walked on a coherent path.
func (b *Board) IsSolved() bool {
	return !b.Collapsed && !b.Unstable && equalPath(b.SelectedPath, b.Required)
}

// IsReachable runs the static solvability check on the board's phases.
func (b *Board) IsReachable() bool {
	return IsReachable(b.Pads, b.Required)
}

// Pad returns the pad with the given id.
func (b *Board) Pad(id int) (Pad, bool) {
	if id < 0 || id >= len(b.Pads) {
		return Pad{}, false
	}
	return b.Pads[id], true
}

// SetHints recomputes the cosmetic glow flags.
func (b *Board) SetHints(enabled bool) {
	for i := range b.Pads {
		b.Pads[i].Glowing = enabled && contains(b.Required, b.Pads[i].ID)
	}
}

// ApplyTransform runs the Hadamard gate on a pad. It returns false without
// touching the board when the pad is locked or the board has collapsed.
func (b *Board) ApplyTransform(padID int, rng *rand.Rand) (bool, error) {
	if padID < 0 || padID >= len(b.Pads) {
		return false, fmt.Errorf("%w: %d", ErrUnknownPad, padID)
	}
	if b.Collapsed || b.Pads[padID].Locked {
		return false, nil
	}
	b.Pads[padID] = Hadamard(b.Pads[padID], rng)
	return true, nil
}

// StepOn validates a step against the required sequence.
func (b *Board) StepOn(padID int) (StepResult, error) {
	if padID < 0 || padID >= len(b.Pads) {
		return StepResult{}, fmt.Errorf("%w: %d", ErrUnknownPad, padID)
	}
	if b.Collapsed || len(b.SelectedPath) >= len(b.Required) {
		return StepResult{Outcome: Ignored, Unstable: b.Unstable}, nil
	}

	pad := b.Pads[padID]
	if pad.Locked {
		return StepResult{Outcome: Ignored, Unstable: b.Unstable}, nil
	}

	if !pad.Walkable() {
		return b.fail(CauseClassicalState,
			fmt.Sprintf("cannot step on classical state: pad %d is in %s", padID, pad.State.Label())), nil
	}
	if !contains(b.Required, padID) {
		return b.fail(CauseWrongPath,
			fmt.Sprintf("wrong quantum path: stepping on pad %d creates decoherence", padID)), nil
	}
	expected := b.Required[len(b.SelectedPath)]
	if padID != expected {
		return b.fail(CauseWrongSequence,
			fmt.Sprintf("incorrect sequence: pad %d must come next to maintain coherence", expected)), nil
	}

	b.SelectedPath = append(b.SelectedPath, padID)
	b.Pads[padID].Locked = true
	b.PlayerPosition = padID

	res := StepResult{Outcome: Continuing}
	if n := len(b.SelectedPath); n >= 2 {
		kind := InterferenceBetween(b.Pads, b.SelectedPath[n-2], b.SelectedPath[n-1])
		res.Interference = &kind
		if kind == Destructive && !b.Unstable {
			if b.decoherenceTicks == 0 {
				return b.fail(CauseDecoherence, "quantum path unstable: destructive interference cancelled the superposition"), nil
			}
			b.Unstable = true
			b.DecoherenceLeft = b.decoherenceTicks
			res.Message = "destructive interference: path is decohering"
		}
	}
	res.Unstable = b.Unstable

	if b.IsSolved() {
		res.Outcome = Solved
	}
	return res, nil
}

// Tick advances the decoherence countdown of an unstable path by one tick.
// It returns true when the countdown ran out and collapsed the board.
func (b *Board) Tick() bool {
	if b.Collapsed || !b.Unstable {
		return false
	}
	b.DecoherenceLeft--
	if b.DecoherenceLeft > 0 {
		return false
	}
	b.Collapse(CauseDecoherence, "quantum path unstable: destructive interference cancelled the superposition")
	return true
}

// Collapse freezes the board until it is replaced.
func (b *Board) Collapse(cause Cause, reason string) {
	b.Collapsed = true
	b.Cause = cause
	b.Reason = reason
	b.Unstable = false
	b.DecoherenceLeft = 0
}

func (b *Board) fail(cause Cause, reason string) StepResult {
	b.Collapse(cause, reason)
	return StepResult{Outcome: Failed, Cause: cause, Message: reason}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (b *Board) Clone() *Board {
	c := *b
	c.Required = append([]int(nil), b.Required...)
	c.Pads = append([]Pad(nil), b.Pads...)
	c.SelectedPath = append([]int{}, b.SelectedPath...)
	return &c
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func equalPath(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
