// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/wfunc/quantumquest/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL is the gorm-backed Database.
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL connects, sizes the pool and migrates the schema.
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.GameSession{},
		&models.LeaderboardEntry{},
		&models.QuantumMeasurement{},
		&models.UserAchievement{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func (p *GormPostgreSQL) CreateUser(ctx context.Context, u *models.User) error {
	return p.db.WithContext(ctx).Create(u).Error
}

func (p *GormPostgreSQL) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (p *GormPostgreSQL) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := p.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (p *GormPostgreSQL) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res := p.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) RecordCompletion(ctx context.Context, userID string, seconds, score int) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"games_completed":      gorm.Expr("games_completed + 1"),
			"total_score":          gorm.Expr("total_score + ?", score),
			"total_playtime":       gorm.Expr("total_playtime + ?", seconds),
			"best_completion_time": gorm.Expr("LEAST(COALESCE(best_completion_time, ?), ?)", seconds, seconds),
			"last_login":           time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

func (p *GormPostgreSQL) TopUsersByScore(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := p.db.WithContext(ctx).Order("total_score DESC").Limit(limit).Find(&users).Error
	return users, err
}

func (p *GormPostgreSQL) UsersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := p.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (p *GormPostgreSQL) CreateGameSession(ctx context.Context, s *models.GameSession) error {
	return p.db.WithContext(ctx).Create(s).Error
}

func (p *GormPostgreSQL) GetGameSession(ctx context.Context, id string) (*models.GameSession, error) {
	var s models.GameSession
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (p *GormPostgreSQL) CompleteGameSession(ctx context.Context, id string, totalTime int, at time.Time) error {
	res := p.db.WithContext(ctx).Model(&models.GameSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"completed_at": at,
		"total_time":   totalTime,
		"is_completed": true,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) SaveProgress(ctx context.Context, pr Progress) error {
	var s models.GameSession
	if err := p.db.WithContext(ctx).Where("id = ?", pr.SessionID).First(&s).Error; err != nil {
		return notFound(err)
	}
	s.CurrentRoom = pr.CurrentRoom
	s.RoomTimes = pr.RoomTimes
	s.RoomAttempts = pr.RoomAttempts
	s.RoomScores = pr.RoomScores
	return p.db.WithContext(ctx).Save(&s).Error
}

func (p *GormPostgreSQL) CreateLeaderboardEntry(ctx context.Context, e *models.LeaderboardEntry) error {
	return p.db.WithContext(ctx).Create(e).Error
}

func (p *GormPostgreSQL) TopEntries(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error) {
	order := "total_score DESC"
	q := p.db.WithContext(ctx).Where("category = ?", category)
	if category == models.CategoryCompletionTime {
		order = "completion_time ASC"
		q = q.Where("completion_time IS NOT NULL")
	}
	var entries []models.LeaderboardEntry
	err := q.Order(order).Limit(limit).Find(&entries).Error
	return entries, err
}

func (p *GormPostgreSQL) CountEntries(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (p *GormPostgreSQL) CreateAchievement(ctx context.Context, a *models.UserAchievement) error {
	return p.db.WithContext(ctx).Create(a).Error
}

func (p *GormPostgreSQL) CountAchievements(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.UserAchievement{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (p *GormPostgreSQL) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
