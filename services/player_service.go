// services/player_service.go
package services

import (
	"context"
	"errors"

	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
)

type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// PlayerProfile is a user with aggregate stats.
type PlayerProfile struct {
	User  models.User        `json:"user"`
	Stats models.PlayerStats `json:"stats"`
}

// GetPlayerWithStats loads a user and counts what they have unlocked and
// ranked.
func (s *PlayerService) GetPlayerWithStats(ctx context.Context, userID string) (*PlayerProfile, error) {
	if !ValidID(userID) {
		return nil, invalid("Invalid user ID")
	}
	user, err := s.db.GetUser(ctx, userID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	achievements, err := s.db.CountAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.db.CountEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &PlayerProfile{
		User: *user,
		Stats: models.PlayerStats{
			GamesCompleted:     user.GamesCompleted,
			TotalScore:         user.TotalScore,
			TotalPlaytime:      user.TotalPlaytime,
			BestCompletionTime: user.BestCompletionTime,
			Achievements:       int(achievements),
			LeaderboardEntries: int(entries),
		},
	}, nil
}
