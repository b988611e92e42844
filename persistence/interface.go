// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/quantumquest/models"
)

// Database is the relational store behind the REST and rpc surfaces.
type Database interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// RecordCompletion bumps the user's running totals for one finished game.
	RecordCompletion(ctx context.Context, userID string, seconds, score int) error
	TopUsersByScore(ctx context.Context, limit int) ([]models.User, error)
	UsersByID(ctx context.Context, ids []string) (map[string]models.User, error)

	CreateGameSession(ctx context.Context, s *models.GameSession) error
	GetGameSession(ctx context.Context, id string) (*models.GameSession, error)
	CompleteGameSession(ctx context.Context, id string, totalTime int, at time.Time) error
	SaveProgress(ctx context.Context, p Progress) error

	CreateLeaderboardEntry(ctx context.Context, e *models.LeaderboardEntry) error
	// TopEntries orders total_score entries by score and completion_time
	// entries by time.
	TopEntries(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error)
	CountEntries(ctx context.Context, userID string) (int64, error)

	CreateAchievement(ctx context.Context, a *models.UserAchievement) error
	CountAchievements(ctx context.Context, userID string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// MeasurementLog stores measurement batches and reads them back.
type MeasurementLog interface {
	SaveBatch(ctx context.Context, batch []models.QuantumMeasurement) error
	Recent(ctx context.Context, roomID string, limit int) ([]models.QuantumMeasurement, error)
}

// Progress is a save-progress update for a game session.
type Progress struct {
	SessionID    string
	CurrentRoom  string
	RoomTimes    map[string]int
	RoomAttempts map[string]int
	RoomScores   map[string]int
}

var (
	ErrRecordNotFound = errors.New("record not found")
)

// DSN builds a lib/pq style connection string.
func DSN(host string, port int, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}
