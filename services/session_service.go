package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/probability"
	"github.com/wfunc/quantumquest/tower"
)

const (
	defaultDifficulty     = "easy"
	defaultCompletionTime = 300
	defaultTotalScore     = 1000
	firstRoom             = "superposition"
)

type CompleteRequest struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	CompletionTime int    `json:"completion_time"`
	TotalScore     int    `json:"total_score"`
	Difficulty     string `json:"difficulty"`
	RoomsCompleted int    `json:"rooms_completed"`
	HintsUsed      int    `json:"hints_used"`
}

type CompleteResult struct {
	Score            int                     `json:"score"`
	Time             int                     `json:"time"`
	LeaderboardEntry models.LeaderboardEntry `json:"leaderboard_entry"`
}

// SessionService tracks game sessions and books finished games.
type SessionService struct {
	db          persistence.Database
	leaderboard *LeaderboardService
	publisher   EventPublisher
	now         func() time.Time
}

func NewSessionService(db persistence.Database, leaderboard *LeaderboardService, publisher EventPublisher) *SessionService {
	return &SessionService{db: db, leaderboard: leaderboard, publisher: publisher, now: time.Now}
}

// Start opens a session in the first room. When the store is down the
// player still gets a local demo session.
func (s *SessionService) Start(ctx context.Context, userID, difficulty string) (*models.GameSession, error) {
	if userID != "" && !ValidID(userID) {
		return nil, invalid("Invalid user ID")
	}
	if difficulty == "" {
		difficulty = defaultDifficulty
	}

	sess := &models.GameSession{
		UserID:       userID,
		Difficulty:   difficulty,
		CurrentRoom:  firstRoom,
		RoomTimes:    map[string]int{},
		RoomAttempts: map[string]int{},
		RoomScores:   map[string]int{},
		StartedAt:    s.now(),
	}
	if err := s.db.CreateGameSession(ctx, sess); err != nil {
		logger.Log.Warnf("Failed to store game session for %s: %v", userID, err)
		sess.ID = uuid.NewString()
	}
	return sess, nil
}

// Complete books a finished game: user totals, leaderboard entries and the
// session row. Only validation can fail it.
func (s *SessionService) Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	if !ValidID(req.UserID) {
		return nil, invalid("Valid user_id is required")
	}
	if req.SessionID != "" && !ValidID(req.SessionID) {
		return nil, invalid("Invalid session ID")
	}
	if req.CompletionTime <= 0 {
		req.CompletionTime = defaultCompletionTime
	}
	if req.TotalScore <= 0 {
		req.TotalScore = defaultTotalScore
	}
	if req.Difficulty == "" {
		req.Difficulty = defaultDifficulty
	}
	if req.RoomsCompleted <= 0 {
		req.RoomsCompleted = 1
	}

	if err := s.db.RecordCompletion(ctx, req.UserID, req.CompletionTime, req.TotalScore); err != nil {
		logger.Log.Warnf("Failed to update user stats for %s: %v", req.UserID, err)
	}

	now := s.now()
	entry := models.LeaderboardEntry{
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		Category:       models.CategoryTotalScore,
		CompletionTime: intPtr(req.CompletionTime),
		TotalScore:     req.TotalScore,
		Difficulty:     req.Difficulty,
		RoomsCompleted: req.RoomsCompleted,
		HintsUsed:      req.HintsUsed,
		AchievedAt:     now,
	}
	if err := s.db.CreateLeaderboardEntry(ctx, &entry); err != nil {
		logger.Log.Warnf("Failed to create leaderboard entry for %s: %v", req.UserID, err)
	}
	speed := entry
	speed.ID = 0
	speed.Category = models.CategoryCompletionTime
	if err := s.db.CreateLeaderboardEntry(ctx, &speed); err != nil {
		logger.Log.Warnf("Failed to create speed entry for %s: %v", req.UserID, err)
	}

	if req.SessionID != "" {
		if err := s.db.CompleteGameSession(ctx, req.SessionID, req.CompletionTime, now); err != nil {
			logger.Log.Warnf("Failed to update game session %s: %v", req.SessionID, err)
		}
	}

	if s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish("completion", entry); err != nil {
			logger.Log.Warnf("Failed to publish completion for %s: %v", req.UserID, err)
		}
	}

	return &CompleteResult{Score: req.TotalScore, Time: req.CompletionTime, LeaderboardEntry: entry}, nil
}

// RecordTowerCompletion books a live tower run.
func (s *SessionService) RecordTowerCompletion(ctx context.Context, userID, sessionID string, c tower.Completion) (*CompleteResult, error) {
	seconds := int(c.Time / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return s.Complete(ctx, CompleteRequest{
		UserID:         userID,
		SessionID:      sessionID,
		CompletionTime: seconds,
		TotalScore:     c.Score,
		Difficulty:     defaultDifficulty,
		RoomsCompleted: 1,
	})
}

// RecordRoomCompletion merges a solved room's time, attempts and score into
// the session's progress. Failures are logged only.
func (s *SessionService) RecordRoomCompletion(ctx context.Context, sessionID string, c probability.Completion) {
	sess, err := s.db.GetGameSession(ctx, sessionID)
	if err != nil {
		logger.Log.Warnf("Cannot record %s for session %s: %v", c.RoomID, sessionID, err)
		return
	}

	seconds := int(c.Time / time.Second)
	p := persistence.Progress{
		SessionID:    sessionID,
		CurrentRoom:  sess.CurrentRoom,
		RoomTimes:    merged(sess.RoomTimes, c.RoomID, seconds),
		RoomAttempts: merged(sess.RoomAttempts, c.RoomID, c.Attempts),
		RoomScores:   merged(sess.RoomScores, c.RoomID, c.Score),
	}
	if err := s.db.SaveProgress(ctx, p); err != nil {
		logger.Log.Warnf("Failed to save %s result for session %s: %v", c.RoomID, sessionID, err)
	}
}

func merged(m map[string]int, key string, v int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, n := range m {
		out[k] = n
	}
	out[key] = v
	return out
}

// SaveProgress stores per-room progress. Storage failures are logged only.
func (s *SessionService) SaveProgress(ctx context.Context, p persistence.Progress) error {
	if !ValidID(p.SessionID) {
		return invalid("Valid session_id is required")
	}
	if err := s.db.SaveProgress(ctx, p); err != nil {
		logger.Log.Warnf("Failed to save progress for %s: %v", p.SessionID, err)
	}
	return nil
}

// UserForSession resolves the owner of a game session.
func (s *SessionService) UserForSession(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.db.GetGameSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return sess.UserID, nil
}
