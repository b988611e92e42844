package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type AuthService struct {
	db     persistence.Database
	tokens *TokenIssuer
	now    func() time.Time
}

func NewAuthService(db persistence.Database, tokens *TokenIssuer) *AuthService {
	return &AuthService{db: db, tokens: tokens, now: time.Now}
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("Email is required")
	}
	if !ValidEmail(email) {
		return "", invalid("Invalid email format")
	}
	return email, nil
}

// Signup creates an account and its opening leaderboard entry.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.User, string, error) {
	email, err := normaliseEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	} else if !ValidUsername(username) {
		return nil, "", invalid("Username must be 3-50 letters, digits, '_' or '-'")
	}

	_, err = s.db.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, "", ErrUserExists
	case !errors.Is(err, persistence.ErrRecordNotFound):
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	user := &models.User{
		Email:               email,
		Username:            username,
		FullName:            strings.TrimSpace(req.FullName),
		IsVerified:          true,
		IsActive:            true,
		QuantumMasteryLevel: 1,
		CreatedAt:           s.now(),
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	entry := &models.LeaderboardEntry{
		UserID:     user.ID,
		Category:   models.CategoryTotalScore,
		Difficulty: "easy",
		AchievedAt: s.now(),
	}
	if err := s.db.CreateLeaderboardEntry(ctx, entry); err != nil {
		logger.Log.Warnf("Failed to create leaderboard entry for %s: %v", user.ID, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	logger.Log.Infof("User %s signed up", user.ID)
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email string) (*models.User, string, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return nil, "", err
	}

	user, err := s.db.GetUserByEmail(ctx, email)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if err := s.db.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Log.Warnf("Failed to update last_login for %s: %v", user.ID, err)
	} else {
		user.LastLogin = &now
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// CurrentUser resolves a bearer token.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.db.GetUser(ctx, userID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
