// models/gorm_models.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Leaderboard categories.
const (
	CategoryTotalScore     = "total_score"
	CategoryCompletionTime = "completion_time"
)

// User is a player account with its running totals.
type User struct {
	ID                  string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Username            string     `gorm:"index;not null" json:"username"`
	FullName            string     `json:"full_name"`
	IsVerified          bool       `gorm:"default:true" json:"is_verified"`
	IsPremium           bool       `gorm:"default:false" json:"is_premium"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	TotalPlaytime       int        `gorm:"default:0" json:"total_playtime"` // seconds
	GamesCompleted      int        `gorm:"default:0" json:"games_completed"`
	BestCompletionTime  *int       `json:"best_completion_time"`
	TotalScore          int        `gorm:"index;default:0" json:"total_score"`
	QuantumMasteryLevel int        `gorm:"default:1" json:"quantum_mastery_level"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// GameSession is one playthrough.
type GameSession struct {
	ID           string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID       string         `gorm:"index" json:"user_id"`
	Difficulty   string         `gorm:"default:easy" json:"difficulty"`
	CurrentRoom  string         `json:"current_room"`
	IsCompleted  bool           `gorm:"default:false" json:"is_completed"`
	RoomTimes    map[string]int `gorm:"serializer:json;type:jsonb" json:"room_times"`
	RoomAttempts map[string]int `gorm:"serializer:json;type:jsonb" json:"room_attempts"`
	RoomScores   map[string]int `gorm:"serializer:json;type:jsonb" json:"room_scores"`
	TotalTime    int            `json:"total_time"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// LeaderboardEntry is one ranked result.
type LeaderboardEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"index;not null" json:"user_id"`
	SessionID      string    `json:"session_id,omitempty"`
	Category       string    `gorm:"index;not null" json:"category"`
	CompletionTime *int      `json:"completion_time"`
	TotalScore     int       `gorm:"index" json:"total_score"`
	Difficulty     string    `json:"difficulty"`
	RoomsCompleted int       `json:"rooms_completed"`
	HintsUsed      int       `json:"hints_used"`
	AchievedAt     time.Time `json:"achieved_at"`
}

// QuantumMeasurement is a logged gameplay event.
type QuantumMeasurement struct {
	ID              uint                   `gorm:"primaryKey" json:"id"`
	SessionID       string                 `gorm:"index" json:"session_id"`
	RoomID          string                 `gorm:"index" json:"room_id"`
	MeasurementType string                 `json:"measurement_type"`
	MeasurementData map[string]interface{} `gorm:"serializer:json;type:jsonb" json:"measurement_data"`
	MeasuredAt      time.Time              `json:"measured_at"`
}

// UserAchievement records an unlocked achievement.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	AchievementID string    `gorm:"not null" json:"achievement_id"`
	SessionID     string    `json:"session_id,omitempty"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}
