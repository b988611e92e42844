package services

import (
	"context"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
)

type UnlockRequest struct {
	AchievementID string `json:"achievement_id"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
}

type AchievementService struct {
	db       persistence.Database
	sessions *SessionService
	now      func() time.Time
}

func NewAchievementService(db persistence.Database, sessions *SessionService) *AchievementService {
	return &AchievementService{db: db, sessions: sessions, now: time.Now}
}

// Unlock records an achievement. A missing user id is looked up through the
// session; the write itself is best effort.
func (s *AchievementService) Unlock(ctx context.Context, req UnlockRequest) error {
	if !ValidID(req.AchievementID) {
		return invalid("Valid achievement_id is required")
	}
	if req.SessionID != "" && !ValidID(req.SessionID) {
		return invalid("Invalid session ID")
	}

	userID := req.UserID
	if userID == "" && req.SessionID != "" {
		owner, err := s.sessions.UserForSession(ctx, req.SessionID)
		if err != nil {
			logger.Log.Warnf("Failed to get user_id from session %s: %v", req.SessionID, err)
		}
		userID = owner
	}
	if userID == "" {
		return invalid("User ID required")
	}
	if !ValidID(userID) {
		return invalid("Invalid user ID")
	}

	record := &models.UserAchievement{
		UserID:        userID,
		AchievementID: req.AchievementID,
		SessionID:     req.SessionID,
		UnlockedAt:    s.now(),
	}
	if err := s.db.CreateAchievement(ctx, record); err != nil {
		logger.Log.Warnf("Failed to save achievement %s for %s: %v", req.AchievementID, userID, err)
	}
	return nil
}
