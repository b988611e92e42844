package tower

import (
	"math/rand"
	"time"
)

// RoomID identifies the tower in measurements and completions.
const RoomID = "superposition-tower"

// Measurement is an analytics record about something the player did.
type Measurement struct {
	RoomID    string                 `json:"room_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// MeasurementSink receives measurements. Record must not block and has no
// way to report failure; sinks swallow their own errors.
type MeasurementSink interface {
	Record(m Measurement)
}

// Completion is reported once when the last floor is solved.
type Completion struct {
	RoomID   string        `json:"room_id"`
	Time     time.Duration `json:"time"`
	Attempts int           `json:"attempts"`
	Score    int           `json:"score"`
}

type CompletionFunc func(Completion)

// Snapshot is the read-only view of a run sent to clients.
type Snapshot struct {
	Floor          int    `json:"floor"`
	FloorCount     int    `json:"floor_count"`
	Description    string `json:"description"`
	Attempts       int    `json:"attempts"`
	Hints          bool   `json:"hints"`
	Status         Status `json:"status"`
	Board          *Board `json:"board"`
	ResetIn        int    `json:"reset_in"`
	FloorTicksLeft int    `json:"floor_ticks_left"`
	Finished       bool   `json:"finished"`
	Score          int    `json:"score,omitempty"`
}

type Option func(*Game)

func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

func WithSink(sink MeasurementSink) Option {
	return func(g *Game) { g.sink = sink }
}

func WithCompletion(fn CompletionFunc) Option {
	return func(g *Game) { g.onComplete = fn }
}

func WithHints(enabled bool) Option {
	return func(g *Game) { g.hints = enabled }
}

// Game is one player's run up the tower. It is not safe for concurrent use;
// the owner serialises Transform, Step, Reset and Tick.
type Game struct {
	cfg        Config
	gen        *Generator
	rng        *rand.Rand
	now        func() time.Time
	sink       MeasurementSink
	onComplete CompletionFunc

	board          *Board
	floor          int
	attempts       int
	hints          bool
	startedAt      time.Time
	resetIn        int
	floorTicksLeft int
	finished       bool
	score          int
	completion     Completion
}

// NewGame validates cfg and lays out the first floor.
func NewGame(cfg Config, rng *rand.Rand, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Game{
		cfg: cfg,
		gen: NewGenerator(cfg, rng),
		rng: rng,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.startedAt = g.now()
	if err := g.newBoard(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) Floor() int      { return g.floor }
func (g *Game) FloorCount() int { return len(g.cfg.Levels) }
func (g *Game) Attempts() int   { return g.attempts }
func (g *Game) Finished() bool  { return g.finished }
func (g *Game) Score() int      { return g.score }
func (g *Game) Hints() bool     { return g.hints }
func (g *Game) Board() *Board   { return g.board.Clone() }
func (g *Game) Level() Level    { return g.cfg.Levels[g.floor] }

// Completion reports the finished run, if any.
func (g *Game) Completion() (Completion, bool) {
	return g.completion, g.finished
}

func (g *Game) Elapsed() time.Duration {
	return g.now().Sub(g.startedAt)
}

// Snapshot copies the current state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Floor:          g.floor,
		FloorCount:     len(g.cfg.Levels),
		Description:    g.cfg.Levels[g.floor].Description,
		Attempts:       g.attempts,
		Hints:          g.hints,
		Status:         g.board.Status(),
		Board:          g.board.Clone(),
		ResetIn:        g.resetIn,
		FloorTicksLeft: g.floorTicksLeft,
		Finished:       g.finished,
		Score:          g.score,
	}
}

// SetHints toggles the glow hints. Logic never depends on them.
func (g *Game) SetHints(enabled bool) {
	g.hints = enabled
	g.board.SetHints(enabled)
}

// Transform applies the Hadamard gate to a pad. Locked pads, collapsed boards
// and finished runs are left alone.
func (g *Game) Transform(padID int) error {
	if g.finished {
		return nil
	}
	before, ok := g.board.Pad(padID)
	applied, err := g.board.ApplyTransform(padID, g.rng)
	if err != nil || !applied || !ok {
		return err
	}

	event := "hadamard_transform"
	if before.State == Superposition {
		event = "quantum_measurement"
	}
	after := g.board.Pads[padID]
	g.record(event, map[string]interface{}{
		"pad_id":     padID,
		"from_state": before.State.String(),
		"to_state":   after.State.String(),
		"phase":      after.Phase,
		"floor":      g.floor,
	})
	return nil
}

// Step moves the player onto a pad. A solved floor advances the run; solving
// the last floor finishes it and reports the completion.
func (g *Game) Step(padID int) (StepResult, error) {
	if g.finished {
		return StepResult{Outcome: Ignored}, nil
	}
	pad, ok := g.board.Pad(padID)
	position := g.board.PlayerPosition

	res, err := g.board.StepOn(padID)
	if err != nil {
		return res, err
	}
	if res.Outcome == Ignored {
		return res, nil
	}
	if ok {
		g.record("pad_interaction", map[string]interface{}{
			"pad_id":          padID,
			"pad_state":       pad.State.String(),
			"floor":           g.floor,
			"player_position": position,
			"outcome":         res.Outcome.String(),
		})
	}

	switch res.Outcome {
	case Failed:
		g.collapsed()
	case Solved:
		g.floorSolved()
	}
	return res, nil
}

// Tick advances every countdown by one tick: the pending auto reset after a
// collapse, the decoherence countdown and the floor timer.
func (g *Game) Tick() {
	if g.finished {
		return
	}
	if g.board.Collapsed {
		if g.resetIn > 0 {
			g.resetIn--
		}
		if g.resetIn == 0 {
			g.regenerate()
		}
		return
	}

	if g.board.Tick() {
		g.collapsed()
		return
	}

	if g.cfg.TimePerFloorTicks > 0 {
		g.floorTicksLeft--
		if g.floorTicksLeft <= 0 {
			g.board.Collapse(CauseFloorTimeout, "floor time expired: the quantum state decohered")
			g.collapsed()
		}
	}
}

// Reset discards the board and lays out a fresh one for the same floor.
// Abandoning a decohering path costs an attempt.
func (g *Game) Reset() {
	if g.finished {
		return
	}
	if g.board.Unstable {
		g.attempts++
	}
	g.regenerate()
}

func (g *Game) collapsed() {
	g.attempts++
	g.record("decoherence", map[string]interface{}{
		"cause":    string(g.board.Cause),
		"reason":   g.board.Reason,
		"floor":    g.floor,
		"path":     append([]int{}, g.board.SelectedPath...),
		"attempts": g.attempts,
	})
	g.resetIn = g.cfg.CollapseDelayTicks
	if g.resetIn == 0 {
		g.regenerate()
	}
}

func (g *Game) floorSolved() {
	g.record("floor_completed", map[string]interface{}{
		"floor": g.floor,
		"path":  append([]int{}, g.board.SelectedPath...),
	})

	if g.floor+1 < len(g.cfg.Levels) {
		g.floor++
		g.regenerate()
		return
	}

	elapsed := g.Elapsed()
	g.finished = true
	g.score = g.cfg.Scoring.Score(g.attempts, elapsed)
	g.record("tower_completion", map[string]interface{}{
		"floors_completed": len(g.cfg.Levels),
		"final_path":       append([]int{}, g.board.SelectedPath...),
		"completion_time":  elapsed.Milliseconds(),
		"total_attempts":   g.attempts,
	})
	g.completion = Completion{
		RoomID:   RoomID,
		Time:     elapsed,
		Attempts: g.attempts,
		Score:    g.score,
	}
	if g.onComplete != nil {
		g.onComplete(g.completion)
	}
}

// regenerate cannot fail once NewGame has validated the config.
func (g *Game) regenerate() {
	_ = g.newBoard()
}

func (g *Game) newBoard() error {
	b, err := g.gen.ResetBoard(g.floor, g.hints)
	if err != nil {
		return err
	}
	g.board = b
	g.resetIn = 0
	g.floorTicksLeft = g.cfg.TimePerFloorTicks
	return nil
}

func (g *Game) record(event string, payload map[string]interface{}) {
	if g.sink == nil {
		return
	}
	g.sink.Record(Measurement{
		RoomID:    RoomID,
		EventType: event,
		Payload:   payload,
		Timestamp: g.now(),
	})
}
