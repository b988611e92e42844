package probability

import (
	"math/rand"
	"strconv"
	"time"
)

// RoomID identifies Probability Bay in measurements and completions.
const RoomID = "probability-bay"

// Stage tracks how far the player has got in the room.
type Stage string

const (
	StageIntro             Stage = "intro"
	StageClassicalMeasured Stage = "classical_measured"
	StageQuantumMeasured   Stage = "quantum_measured"
	StageReadyToSolve      Stage = "ready_to_solve"
	StageSolved            Stage = "solved"
)

// Scoring for the dice room; the first check is free.
const (
	baseScore      = 1000
	attemptPenalty = 100
	minScore       = 100
)

// Score is max(1000 - (attempts-1)*100 - whole seconds, 100).
func Score(attempts int, elapsed time.Duration) int {
	if attempts < 1 {
		attempts = 1
	}
	if elapsed < 0 {
		elapsed = 0
	}
	s := baseScore - (attempts-1)*attemptPenalty - int(elapsed/time.Second)
	if s < minScore {
		return minScore
	}
	return s
}

// CheckResult is the answer to a locker guess.
type CheckResult struct {
	CodeCorrect bool  `json:"code_correct"`
	Solved      bool  `json:"solved"`
	Attempts    int   `json:"attempts"`
	Score       int   `json:"score,omitempty"`
	Stage       Stage `json:"stage"`
}

// Completion is what a solved room reports.
type Completion struct {
	RoomID   string
	Time     time.Duration
	Attempts int
	Score    int
}

// Room is one player's visit to Probability Bay. Not safe for concurrent use.
type Room struct {
	classical *ClassicalDie
	quantum   *QuantumDie
	now       func() time.Time
	startedAt time.Time

	stage          Stage
	classicalRolls []int
	quantumRolls   []int
	attempts       int
	score          int
	solvedAt       time.Time
}

func NewRoom(rng *rand.Rand, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	return &Room{
		classical: NewClassicalDie(rng),
		quantum:   NewQuantumDie(rng),
		now:       now,
		startedAt: now(),
		stage:     StageIntro,
	}
}

func (r *Room) Stage() Stage     { return r.stage }
func (r *Room) Attempts() int    { return r.attempts }
func (r *Room) Quantum() []int   { return append([]int(nil), r.quantumRolls...) }
func (r *Room) Classical() []int { return append([]int(nil), r.classicalRolls...) }

// Completion reports the result once the room is solved.
func (r *Room) Completion() (Completion, bool) {
	if r.stage != StageSolved {
		return Completion{}, false
	}
	return Completion{
		RoomID:   RoomID,
		Time:     r.solvedAt.Sub(r.startedAt),
		Attempts: r.attempts,
		Score:    r.score,
	}, true
}

// MeasureClassical rolls the fair die RollCount times.
func (r *Room) MeasureClassical() []int {
	r.classicalRolls = Measure(r.classical, RollCount)
	r.advance(StageClassicalMeasured, len(r.quantumRolls) > 0)
	return r.Classical()
}

// MeasureQuantum draws a new interference pattern and rolls it RollCount times.
func (r *Room) MeasureQuantum() []int {
	r.quantum.Reshuffle()
	r.quantumRolls = Measure(r.quantum, RollCount)
	r.advance(StageQuantumMeasured, len(r.classicalRolls) > 0)
	return r.Quantum()
}

func (r *Room) advance(stage Stage, both bool) {
	if r.stage == StageSolved {
		return
	}
	if both {
		r.stage = StageReadyToSolve
		return
	}
	r.stage = stage
}

// CheckLocker counts an attempt and solves the room when the code is the
// most frequent quantum outcome and the chosen locker carries that number.
func (r *Room) CheckLocker(code string, locker int) CheckResult {
	if r.stage == StageSolved {
		return CheckResult{CodeCorrect: true, Solved: true, Attempts: r.attempts, Score: r.score, Stage: r.stage}
	}
	r.attempts++

	expected := ExpectedLockerCode(Histogram(r.quantumRolls))
	res := CheckResult{Attempts: r.attempts, Stage: r.stage}
	if expected == "" || code != expected {
		return res
	}
	res.CodeCorrect = true
	if strconv.Itoa(locker) != expected {
		return res
	}

	r.stage = StageSolved
	r.solvedAt = r.now()
	r.score = Score(r.attempts, r.solvedAt.Sub(r.startedAt))
	res.Solved = true
	res.Score = r.score
	res.Stage = r.stage
	return res
}
