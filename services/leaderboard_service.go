package services

import (
	"context"
	"fmt"

	"github.com/wfunc/quantumquest/cache"
	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
)

const LeaderboardSize = 10

// Where a leaderboard came from.
const (
	SourceCache     = "cache"
	SourceDatabase  = "database"
	SourceUserStats = "user_stats"
	SourceDemo      = "demo"
)

const (
	KindScore = "score"
	KindSpeed = "speed"
)

func intPtr(v int) *int { return &v }

// LeaderboardService builds the score and speed boards. It never fails:
// when the database has nothing to offer it serves demo data.
type LeaderboardService struct {
	db    persistence.Database
	cache cache.Leaderboard
}

func NewLeaderboardService(db persistence.Database, c cache.Leaderboard) *LeaderboardService {
	if c == nil {
		c = cache.Noop{}
	}
	return &LeaderboardService{db: db, cache: c}
}

// Get dispatches on kind ("score" or "speed").
func (s *LeaderboardService) Get(ctx context.Context, kind string) (*models.Leaderboard, error) {
	switch kind {
	case "", KindScore:
		return s.Score(ctx), nil
	case KindSpeed:
		return s.Speed(ctx), nil
	}
	return nil, invalid(fmt.Sprintf("Unknown leaderboard type %q", kind))
}

func (s *LeaderboardService) Score(ctx context.Context) *models.Leaderboard {
	if lb, ok := s.cached(ctx, KindScore); ok {
		return lb
	}

	entries, err := s.db.TopEntries(ctx, models.CategoryTotalScore, LeaderboardSize)
	if err != nil {
		logger.Log.Warnf("Database score leaderboard failed: %v", err)
		return demoScore()
	}
	if len(entries) > 0 {
		return s.store(ctx, KindScore, &models.Leaderboard{
			Entries: s.enrich(ctx, entries),
			Type:    KindScore,
			Source:  SourceDatabase,
		})
	}

	users, err := s.db.TopUsersByScore(ctx, LeaderboardSize)
	if err != nil {
		logger.Log.Warnf("User stats leaderboard failed: %v", err)
		return demoScore()
	}
	if len(users) > 0 {
		return s.store(ctx, KindScore, &models.Leaderboard{
			Entries: rowsFromUsers(users),
			Type:    KindScore,
			Source:  SourceUserStats,
		})
	}
	return demoScore()
}

func (s *LeaderboardService) Speed(ctx context.Context) *models.Leaderboard {
	if lb, ok := s.cached(ctx, KindSpeed); ok {
		return lb
	}

	entries, err := s.db.TopEntries(ctx, models.CategoryCompletionTime, LeaderboardSize)
	if err != nil {
		logger.Log.Warnf("Database speed leaderboard failed: %v", err)
		return demoSpeed()
	}
	if len(entries) > 0 {
		return s.store(ctx, KindSpeed, &models.Leaderboard{
			Entries: s.enrich(ctx, entries),
			Type:    KindSpeed,
			Source:  SourceDatabase,
		})
	}
	return demoSpeed()
}

// TopScores ranks users by their running total.
func (s *LeaderboardService) TopScores(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = LeaderboardSize
	}
	users, err := s.db.TopUsersByScore(ctx, limit)
	if err != nil {
		return nil, err
	}
	return rowsFromUsers(users), nil
}

func (s *LeaderboardService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

func (s *LeaderboardService) cached(ctx context.Context, kind string) (*models.Leaderboard, bool) {
	lb, ok := s.cache.Get(ctx, kind)
	if !ok {
		return nil, false
	}
	lb.Source = SourceCache
	return lb, true
}

func (s *LeaderboardService) store(ctx context.Context, kind string, lb *models.Leaderboard) *models.Leaderboard {
	s.cache.Set(ctx, kind, lb)
	return lb
}

// enrich ranks entries and fills in names. Missing users keep an empty name.
func (s *LeaderboardService) enrich(ctx context.Context, entries []models.LeaderboardEntry) []models.LeaderboardRow {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	users, err := s.db.UsersByID(ctx, ids)
	if err != nil {
		logger.Log.Warnf("Failed to fetch user data for leaderboard: %v", err)
		users = nil
	}

	rows := make([]models.LeaderboardRow, len(entries))
	for i, e := range entries {
		row := models.LeaderboardRow{
			Rank:           i + 1,
			UserID:         e.UserID,
			TotalScore:     e.TotalScore,
			CompletionTime: e.CompletionTime,
			Difficulty:     e.Difficulty,
		}
		if u, ok := users[e.UserID]; ok {
			row.Username = u.Username
			row.FullName = u.FullName
			row.GamesCompleted = u.GamesCompleted
		}
		rows[i] = row
	}
	return rows
}

func rowsFromUsers(users []models.User) []models.LeaderboardRow {
	rows := make([]models.LeaderboardRow, len(users))
	for i, u := range users {
		name := u.Username
		if name == "" {
			name = "Unknown"
		}
		rows[i] = models.LeaderboardRow{
			Rank:                i + 1,
			UserID:              u.ID,
			Username:            name,
			FullName:            u.FullName,
			TotalScore:          u.TotalScore,
			CompletionTime:      u.BestCompletionTime,
			GamesCompleted:      u.GamesCompleted,
			QuantumMasteryLevel: u.QuantumMasteryLevel,
		}
	}
	return rows
}

func demoScore() *models.Leaderboard {
	return &models.Leaderboard{
		Type:   KindScore,
		Source: SourceDemo,
		Entries: []models.LeaderboardRow{
			{Rank: 1, Username: "QuantumAlice", TotalScore: 4500, CompletionTime: intPtr(180), GamesCompleted: 15},
			{Rank: 2, Username: "EntangleCharlie", TotalScore: 3200, CompletionTime: intPtr(200), GamesCompleted: 12},
			{Rank: 3, Username: "SuperpositionBob", TotalScore: 2800, CompletionTime: intPtr(240), GamesCompleted: 8},
		},
	}
}

func demoSpeed() *models.Leaderboard {
	return &models.Leaderboard{
		Type:   KindSpeed,
		Source: SourceDemo,
		Entries: []models.LeaderboardRow{
			{Rank: 1, UserID: "demo-user-1", Username: "SpeedyQuantum", FullName: "Speedy Player", TotalScore: 1200, CompletionTime: intPtr(180), Difficulty: "hard"},
			{Rank: 2, UserID: "demo-user-2", Username: "FastAlice", FullName: "Alice Cooper", TotalScore: 1000, CompletionTime: intPtr(220), Difficulty: "medium"},
			{Rank: 3, UserID: "demo-user-3", Username: "QuickBob", FullName: "Bob Wilson", TotalScore: 800, CompletionTime: intPtr(260), Difficulty: "easy"},
		},
	}
}
