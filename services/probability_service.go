package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/probability"
)

const (
	maxRolls = 1000
	// Rooms untouched for this long are dropped.
	probabilityRoomTTL = time.Hour
)

type MeasureRequest struct {
	SessionID string `json:"session_id"`
	Die       string `json:"die"` // "classical" or "quantum"
	Rolls     int    `json:"rolls"`
}

type MeasureResult struct {
	Die     string              `json:"die"`
	Rolls   []int               `json:"rolls"`
	Summary probability.Summary `json:"summary"`
	Weights []float64           `json:"weights,omitempty"`
	Stage   probability.Stage   `json:"stage,omitempty"`
}

type CheckRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Locker    int    `json:"locker"`
}

// ProbabilityCompletionFunc is told about every solved Probability Bay room.
type ProbabilityCompletionFunc func(ctx context.Context, sessionID string, c probability.Completion)

type probabilityRoom struct {
	room     *probability.Room
	lastSeen time.Time
}

// ProbabilityService runs Probability Bay. Requests carrying a session_id play
// that session's room; requests without one get a free measurement batch.
type ProbabilityService struct {
	mutex        sync.Mutex
	rng          *rand.Rand
	rooms        map[string]*probabilityRoom
	measurements *MeasurementService
	onComplete   ProbabilityCompletionFunc
	now          func() time.Time
}

func NewProbabilityService(rng *rand.Rand, measurements *MeasurementService, onComplete ProbabilityCompletionFunc) *ProbabilityService {
	return &ProbabilityService{
		rng:          rng,
		rooms:        make(map[string]*probabilityRoom),
		measurements: measurements,
		onComplete:   onComplete,
		now:          time.Now,
	}
}

func (s *ProbabilityService) Measure(req MeasureRequest) (*MeasureResult, error) {
	if req.SessionID != "" && !ValidID(req.SessionID) {
		return nil, invalid("Invalid session ID")
	}
	if req.Die != "classical" && req.Die != "quantum" {
		return nil, invalid(`die must be "classical" or "quantum"`)
	}

	var res *MeasureResult
	if req.SessionID != "" {
		res = s.measureRoom(req)
	} else {
		var err error
		if res, err = s.measureFree(req); err != nil {
			return nil, err
		}
	}
	res.Summary = probability.Summarize(res.Rolls)

	s.log(req.SessionID, req.Die+"_measurement", map[string]interface{}{
		"rolls":     len(res.Rolls),
		"histogram": res.Summary.Histogram,
	})
	return res, nil
}

// measureRoom rolls the session room's dice. The room always rolls
// probability.RollCount times and keeps its weights hidden.
func (s *ProbabilityService) measureRoom(req MeasureRequest) *MeasureResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r := s.room(req.SessionID, true)
	res := &MeasureResult{Die: req.Die}
	if req.Die == "classical" {
		res.Rolls = r.MeasureClassical()
	} else {
		res.Rolls = r.MeasureQuantum()
	}
	res.Stage = r.Stage()
	return res
}

func (s *ProbabilityService) measureFree(req MeasureRequest) (*MeasureResult, error) {
	if req.Rolls == 0 {
		req.Rolls = probability.RollCount
	}
	if req.Rolls < 0 || req.Rolls > maxRolls {
		return nil, invalid("rolls must be between 1 and 1000")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	res := &MeasureResult{Die: req.Die}
	if req.Die == "classical" {
		res.Rolls = probability.Measure(probability.NewClassicalDie(s.rng), req.Rolls)
		return res, nil
	}
	d := probability.NewQuantumDie(s.rng)
	res.Weights = d.Weights()
	res.Rolls = probability.Measure(d, req.Rolls)
	return res, nil
}

// Check opens a locker in the session's room. Both dice must have been
// measured first. A solved room is reported to the completion callback once
// and then forgotten.
func (s *ProbabilityService) Check(ctx context.Context, req CheckRequest) (*probability.CheckResult, error) {
	if !ValidID(req.SessionID) {
		return nil, invalid("Valid session_id is required")
	}
	if req.Locker < 1 || req.Locker > probability.FaceCount {
		return nil, invalid("locker must be between 1 and 6")
	}

	s.mutex.Lock()
	r := s.room(req.SessionID, false)
	if r == nil || (r.Stage() != probability.StageReadyToSolve && r.Stage() != probability.StageSolved) {
		s.mutex.Unlock()
		return nil, invalid("Measure both dice before opening a locker")
	}
	res := r.CheckLocker(req.Code, req.Locker)
	completion, solved := r.Completion()
	if solved {
		delete(s.rooms, req.SessionID)
	}
	s.mutex.Unlock()

	s.log(req.SessionID, "locker_check", map[string]interface{}{
		"locker":       req.Locker,
		"code_correct": res.CodeCorrect,
		"solved":       res.Solved,
		"attempts":     res.Attempts,
	})
	if solved && s.onComplete != nil {
		s.onComplete(ctx, req.SessionID, completion)
	}
	return &res, nil
}

// room returns the session's room, creating it when asked. Callers hold the mutex.
func (s *ProbabilityService) room(sessionID string, create bool) *probability.Room {
	now := s.now()
	if pr, ok := s.rooms[sessionID]; ok {
		pr.lastSeen = now
		return pr.room
	}
	if !create {
		return nil
	}

	for id, pr := range s.rooms {
		if now.Sub(pr.lastSeen) > probabilityRoomTTL {
			delete(s.rooms, id)
		}
	}
	pr := &probabilityRoom{room: probability.NewRoom(s.rng, s.now), lastSeen: now}
	s.rooms[sessionID] = pr
	logger.Log.Debugf("Opened Probability Bay room for session %s", sessionID)
	return pr.room
}

func (s *ProbabilityService) log(sessionID, kind string, data map[string]interface{}) {
	if s.measurements == nil {
		return
	}
	s.measurements.Log(models.QuantumMeasurement{
		SessionID:       sessionID,
		RoomID:          probability.RoomID,
		MeasurementType: kind,
		MeasurementData: data,
	})
}
