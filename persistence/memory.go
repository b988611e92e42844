// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/quantumquest/models"
)

// Memory keeps everything in process. It backs tests and servers started
// without a database host.
type Memory struct {
	mutex        sync.RWMutex
	users        map[string]models.User
	sessions     map[string]models.GameSession
	entries      []models.LeaderboardEntry
	achievements []models.UserAchievement
	measurements []models.QuantumMeasurement
	nextID       uint

	// err, when set, is returned by every call.
	err error
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.GameSession),
		nextID:   1,
	}
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[id]
	if !ok {
		return ErrRecordNotFound
	}
	u.LastLogin = &at
	m.users[id] = u
	return nil
}

func (m *Memory) RecordCompletion(ctx context.Context, userID string, seconds, score int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrRecordNotFound
	}
	u.GamesCompleted++
	u.TotalScore += score
	u.TotalPlaytime += seconds
	if u.BestCompletionTime == nil || seconds < *u.BestCompletionTime {
		best := seconds
		u.BestCompletionTime = &best
	}
	now := time.Now()
	u.LastLogin = &now
	m.users[userID] = u
	return nil
}

func (m *Memory) TopUsersByScore(ctx context.Context, limit int) ([]models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].TotalScore != users[j].TotalScore {
			return users[i].TotalScore > users[j].TotalScore
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *Memory) UsersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *Memory) CreateGameSession(ctx context.Context, s *models.GameSession) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *Memory) GetGameSession(ctx context.Context, id string) (*models.GameSession, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &s, nil
}

func (m *Memory) CompleteGameSession(ctx context.Context, id string, totalTime int, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return ErrRecordNotFound
	}
	s.IsCompleted = true
	s.TotalTime = totalTime
	s.CompletedAt = &at
	m.sessions[id] = s
	return nil
}

func (m *Memory) SaveProgress(ctx context.Context, p Progress) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	s, ok := m.sessions[p.SessionID]
	if !ok {
		return ErrRecordNotFound
	}
	s.CurrentRoom = p.CurrentRoom
	s.RoomTimes = p.RoomTimes
	s.RoomAttempts = p.RoomAttempts
	s.RoomScores = p.RoomScores
	m.sessions[p.SessionID] = s
	return nil
}

func (m *Memory) CreateLeaderboardEntry(ctx context.Context, e *models.LeaderboardEntry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	e.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, *e)
	return nil
}

func (m *Memory) TopEntries(ctx context.Context, category string, limit int) ([]models.LeaderboardEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.LeaderboardEntry
	for _, e := range m.entries {
		if e.Category != category {
			continue
		}
		if category == models.CategoryCompletionTime && e.CompletionTime == nil {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if category == models.CategoryCompletionTime {
			return *out[i].CompletionTime < *out[j].CompletionTime
		}
		return out[i].TotalScore > out[j].TotalScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountEntries(ctx context.Context, userID string) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateAchievement(ctx context.Context, a *models.UserAchievement) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = m.nextID
	m.nextID++
	m.achievements = append(m.achievements, *a)
	return nil
}

func (m *Memory) CountAchievements(ctx context.Context, userID string) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, a := range m.achievements {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// SaveBatch makes Memory a MeasurementLog as well.
func (m *Memory) SaveBatch(ctx context.Context, batch []models.QuantumMeasurement) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	m.measurements = append(m.measurements, batch...)
	return nil
}

// Recent returns the newest measurements for a room, newest first.
func (m *Memory) Recent(ctx context.Context, roomID string, limit int) ([]models.QuantumMeasurement, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	var out []models.QuantumMeasurement
	for _, ms := range m.measurements {
		if ms.RoomID == roomID {
			out = append(out, ms)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeasuredAt.After(out[j].MeasuredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Measurements returns a copy of everything saved through SaveBatch.
func (m *Memory) Measurements() []models.QuantumMeasurement {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.QuantumMeasurement(nil), m.measurements...)
}

// SetErr makes every following call fail with err; nil restores normal
// behaviour.
func (m *Memory) SetErr(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.err = err
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.err
}

func (m *Memory) Close() error { return nil }

var (
	_ Database       = (*Memory)(nil)
	_ Database       = (*GormPostgreSQL)(nil)
	_ MeasurementLog = (*Memory)(nil)
	_ MeasurementLog = (*MeasurementStore)(nil)
)
