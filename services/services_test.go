package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/probability"
	"github.com/wfunc/quantumquest/tower"
)

// fakeCache is an in-process cache.Leaderboard.
type fakeCache struct {
	mutex       sync.Mutex
	items       map[string]models.Leaderboard
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]models.Leaderboard)}
}

func (c *fakeCache) Get(ctx context.Context, kind string) (*models.Leaderboard, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	lb, ok := c.items[kind]
	if !ok {
		return nil, false
	}
	return &lb, true
}

func (c *fakeCache) Set(ctx context.Context, kind string, lb *models.Leaderboard) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items[kind] = *lb
}

func (c *fakeCache) Invalidate(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]models.Leaderboard)
	c.invalidated++
}

type recordingPublisher struct {
	mutex  sync.Mutex
	kinds  []string
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(kind string, v interface{}) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.err != nil {
		return p.err
	}
	p.kinds = append(p.kinds, kind)
	p.events = append(p.events, v)
	return nil
}

func (p *recordingPublisher) count(kind string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	n := 0
	for _, k := range p.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func newUser(t *testing.T, db *persistence.Memory, email string, score int) *models.User {
	t.Helper()
	u := &models.User{Email: email, Username: email[:3], TotalScore: score, QuantumMasteryLevel: 1}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func TestValidation(t *testing.T) {
	assert.True(t, ValidEmail("a@b.co"))
	assert.False(t, ValidEmail("a b@c.d"))
	assert.False(t, ValidEmail("nobody"))

	assert.True(t, ValidID("demo-session-1700000000000"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("bad id"))
	assert.False(t, ValidID(string(make([]byte, 129))))

	assert.True(t, ValidUsername("qubit_7"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("has.dot"))

	err := invalid("nope")
	assert.ErrorIs(t, err, ErrInvalidInput)
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "nope", ie.Msg)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	other := NewTokenIssuer("another-secret", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RandomSecret(t *testing.T) {
	a := NewTokenIssuer("", 0)
	b := NewTokenIssuer("", 0)
	token, err := a.Issue("u")
	require.NoError(t, err)
	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 24*time.Hour, a.ttl)
}

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	auth := NewAuthService(db, NewTokenIssuer("s", time.Hour))

	user, token, err := auth.Signup(ctx, SignupRequest{Email: " Ada@Example.com ", FullName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, 1, user.QuantumMasteryLevel)
	assert.Zero(t, user.TotalScore)
	assert.NotEmpty(t, token)

	entries, err := db.TopEntries(ctx, models.CategoryTotalScore, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, user.ID, entries[0].UserID)

	_, _, err = auth.Signup(ctx, SignupRequest{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, err = auth.Signup(ctx, SignupRequest{Email: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = auth.Signup(ctx, SignupRequest{Email: "bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = auth.Signup(ctx, SignupRequest{Email: "x@y.z", Username: "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	me, err := auth.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	auth := NewAuthService(db, NewTokenIssuer("s", time.Hour))

	_, _, err := auth.Login(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	created, _, err := auth.Signup(ctx, SignupRequest{Email: "bob@example.com", Username: "bobby"})
	require.NoError(t, err)

	user, token, err := auth.Login(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotNil(t, user.LastLogin)
	assert.NotEmpty(t, token)

	db.SetErr(errors.New("down"))
	_, _, err = auth.Login(ctx, "bob@example.com")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_CurrentUser_Deleted(t *testing.T) {
	tokens := NewTokenIssuer("s", time.Hour)
	auth := NewAuthService(persistence.NewMemory(), tokens)
	token, err := tokens.Issue("nobody")
	require.NoError(t, err)
	_, err = auth.CurrentUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLeaderboard_Fallbacks(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	lb := NewLeaderboardService(db, nil)

	score := lb.Score(ctx)
	assert.Equal(t, SourceDemo, score.Source)
	assert.Len(t, score.Entries, 3)
	assert.Equal(t, "QuantumAlice", score.Entries[0].Username)

	speed := lb.Speed(ctx)
	assert.Equal(t, SourceDemo, speed.Source)
	assert.Equal(t, "SpeedyQuantum", speed.Entries[0].Username)

	// users but no entries
	newUser(t, db, "low@example.com", 10)
	newUser(t, db, "top@example.com", 900)
	score = lb.Score(ctx)
	assert.Equal(t, SourceUserStats, score.Source)
	require.Len(t, score.Entries, 2)
	assert.Equal(t, 900, score.Entries[0].TotalScore)
	assert.Equal(t, 1, score.Entries[0].Rank)

	db.SetErr(errors.New("down"))
	assert.Equal(t, SourceDemo, lb.Score(ctx).Source)
	assert.Equal(t, SourceDemo, lb.Speed(ctx).Source)
}

func TestLeaderboard_DatabaseAndCache(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	c := newFakeCache()
	lb := NewLeaderboardService(db, c)

	u := newUser(t, db, "eve@example.com", 0)
	require.NoError(t, db.CreateLeaderboardEntry(ctx, &models.LeaderboardEntry{
		UserID: u.ID, Category: models.CategoryCompletionTime, CompletionTime: intPtr(95), TotalScore: 1450,
	}))
	require.NoError(t, db.CreateLeaderboardEntry(ctx, &models.LeaderboardEntry{
		UserID: "gone", Category: models.CategoryCompletionTime, CompletionTime: intPtr(90), TotalScore: 1000,
	}))

	speed := lb.Speed(ctx)
	assert.Equal(t, SourceDatabase, speed.Source)
	require.Len(t, speed.Entries, 2)
	assert.Equal(t, "gone", speed.Entries[0].UserID)
	assert.Empty(t, speed.Entries[0].Username)
	assert.Equal(t, "eve", speed.Entries[1].Username)
	assert.Equal(t, 2, speed.Entries[1].Rank)

	cached := lb.Speed(ctx)
	assert.Equal(t, SourceCache, cached.Source)
	assert.Len(t, cached.Entries, 2)

	lb.Invalidate(ctx)
	assert.Equal(t, 1, c.invalidated)
	assert.Equal(t, SourceDatabase, lb.Speed(ctx).Source)

	// demo data is never cached
	lbEmpty := NewLeaderboardService(persistence.NewMemory(), c)
	c.Invalidate(ctx)
	lbEmpty.Score(ctx)
	_, ok := c.Get(ctx, KindScore)
	assert.False(t, ok)
}

func TestLeaderboard_Get(t *testing.T) {
	lb := NewLeaderboardService(persistence.NewMemory(), nil)
	got, err := lb.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, KindScore, got.Type)

	got, err = lb.Get(context.Background(), "speed")
	require.NoError(t, err)
	assert.Equal(t, KindSpeed, got.Type)

	_, err = lb.Get(context.Background(), "fame")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLeaderboard_TopScores(t *testing.T) {
	db := persistence.NewMemory()
	newUser(t, db, "one@example.com", 5)
	newUser(t, db, "two@example.com", 50)
	rows, err := NewLeaderboardService(db, nil).TopScores(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 50, rows[0].TotalScore)
}

func TestSessionService_Start(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewSessionService(db, nil, nil)

	sess, err := svc.Start(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "easy", sess.Difficulty)
	assert.Equal(t, "superposition", sess.CurrentRoom)
	assert.False(t, sess.IsCompleted)

	stored, err := db.GetGameSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)

	_, err = svc.Start(ctx, "bad id", "easy")
	assert.ErrorIs(t, err, ErrInvalidInput)

	db.SetErr(errors.New("down"))
	demo, err := svc.Start(ctx, "user-1", "hard")
	require.NoError(t, err)
	_, err = uuid.Parse(demo.ID)
	assert.NoError(t, err, "fallback sessions still get a uuid")
	assert.True(t, ValidID(demo.ID))
	assert.NotEqual(t, sess.ID, demo.ID)
	assert.Equal(t, "hard", demo.Difficulty)
}

func TestSessionService_Complete(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	c := newFakeCache()
	pub := &recordingPublisher{}
	svc := NewSessionService(db, NewLeaderboardService(db, c), pub)

	u := newUser(t, db, "kim@example.com", 0)
	sess, err := svc.Start(ctx, u.ID, "medium")
	require.NoError(t, err)

	res, err := svc.Complete(ctx, CompleteRequest{UserID: u.ID, SessionID: sess.ID, CompletionTime: 240, TotalScore: 1350, Difficulty: "medium"})
	require.NoError(t, err)
	assert.Equal(t, 1350, res.Score)
	assert.Equal(t, 240, res.Time)
	assert.Equal(t, models.CategoryTotalScore, res.LeaderboardEntry.Category)

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.GamesCompleted)
	assert.Equal(t, 1350, got.TotalScore)
	assert.Equal(t, 240, *got.BestCompletionTime)

	stored, err := db.GetGameSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, 240, stored.TotalTime)

	speed, err := db.TopEntries(ctx, models.CategoryCompletionTime, 10)
	require.NoError(t, err)
	require.Len(t, speed, 1)
	assert.Equal(t, 240, *speed[0].CompletionTime)

	assert.Equal(t, 1, c.invalidated)
	assert.Equal(t, 1, pub.count("completion"))
}

func TestSessionService_CompleteDefaultsAndFailures(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewSessionService(db, nil, &recordingPublisher{err: errors.New("nats down")})

	_, err := svc.Complete(ctx, CompleteRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// unknown user and session are logged, not returned
	res, err := svc.Complete(ctx, CompleteRequest{UserID: "ghost", SessionID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Score)
	assert.Equal(t, 300, res.Time)
	assert.Equal(t, "easy", res.LeaderboardEntry.Difficulty)
	assert.Equal(t, 1, res.LeaderboardEntry.RoomsCompleted)

	db.SetErr(errors.New("down"))
	_, err = svc.Complete(ctx, CompleteRequest{UserID: "ghost"})
	assert.NoError(t, err)
}

func TestSessionService_RecordTowerCompletion(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewSessionService(db, nil, nil)
	u := newUser(t, db, "tow@example.com", 0)

	res, err := svc.RecordTowerCompletion(ctx, u.ID, "", tower.Completion{
		RoomID: tower.RoomID, Time: 95*time.Second + 400*time.Millisecond, Attempts: 2, Score: 1305,
	})
	require.NoError(t, err)
	assert.Equal(t, 95, res.Time)
	assert.Equal(t, 1305, res.Score)
}

func TestSessionService_SaveProgress(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewSessionService(db, nil, nil)
	sess, err := svc.Start(ctx, "u1", "")
	require.NoError(t, err)

	require.NoError(t, svc.SaveProgress(ctx, persistence.Progress{
		SessionID:    sess.ID,
		CurrentRoom:  "probability",
		RoomAttempts: map[string]int{"superposition": 3},
	}))
	stored, err := db.GetGameSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "probability", stored.CurrentRoom)
	assert.Equal(t, 3, stored.RoomAttempts["superposition"])

	assert.NoError(t, svc.SaveProgress(ctx, persistence.Progress{SessionID: "unknown"}))
	assert.ErrorIs(t, svc.SaveProgress(ctx, persistence.Progress{}), ErrInvalidInput)
}

func TestAchievementService_Unlock(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	sessions := NewSessionService(db, nil, nil)
	svc := NewAchievementService(db, sessions)

	sess, err := sessions.Start(ctx, "owner-1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Unlock(ctx, UnlockRequest{AchievementID: "first_superposition", SessionID: sess.ID}))
	n, err := db.CountAchievements(ctx, "owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, svc.Unlock(ctx, UnlockRequest{AchievementID: "tower_master", UserID: "owner-2"}))

	err = svc.Unlock(ctx, UnlockRequest{AchievementID: "x", SessionID: "missing"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	err = svc.Unlock(ctx, UnlockRequest{UserID: "owner-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	db.SetErr(errors.New("down"))
	assert.NoError(t, svc.Unlock(ctx, UnlockRequest{AchievementID: "x", UserID: "owner-1"}))
}

func TestMeasurementService_FlushOnClose(t *testing.T) {
	db := persistence.NewMemory()
	pub := &recordingPublisher{}
	svc := NewMeasurementService(db, pub)

	svc.Log(models.QuantumMeasurement{RoomID: "probability-bay", MeasurementType: "dice"})
	sink := svc.Sink("sess-1")
	sink.Record(tower.Measurement{
		RoomID:    tower.RoomID,
		EventType: "pad_interaction",
		Payload:   map[string]interface{}{"pad_id": 2},
		Timestamp: time.Unix(100, 0),
	})
	svc.Close()
	svc.Close()

	saved := db.Measurements()
	require.Len(t, saved, 2)
	assert.False(t, saved[0].MeasuredAt.IsZero())
	assert.Equal(t, "sess-1", saved[1].SessionID)
	assert.Equal(t, "pad_interaction", saved[1].MeasurementType)
	assert.Equal(t, 2, saved[1].MeasurementData["pad_id"])
	assert.Equal(t, 2, pub.count("measurement"))
}

func TestMeasurementService_Recent(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewMeasurementService(db, nil)
	svc.Log(models.QuantumMeasurement{RoomID: tower.RoomID, MeasurementType: "hadamard_transform", MeasuredAt: time.Unix(10, 0)})
	svc.Log(models.QuantumMeasurement{RoomID: tower.RoomID, MeasurementType: "pad_interaction", MeasuredAt: time.Unix(20, 0)})
	svc.Log(models.QuantumMeasurement{RoomID: "probability-bay", MeasurementType: "quantum_measurement"})
	svc.Close()

	out, err := svc.Recent(ctx, tower.RoomID, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "pad_interaction", out[0].MeasurementType)

	out, err = svc.Recent(ctx, tower.RoomID, 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = svc.Recent(ctx, "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Recent(ctx, tower.RoomID, 501)
	assert.ErrorIs(t, err, ErrInvalidInput)

	db.SetErr(errors.New("down"))
	_, err = svc.Recent(ctx, tower.RoomID, 10)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	noDeps := NewMeasurementService(nil, nil)
	defer noDeps.Close()
	out, err = noDeps.Recent(ctx, tower.RoomID, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMeasurementService_FailuresAreSwallowed(t *testing.T) {
	db := persistence.NewMemory()
	db.SetErr(errors.New("down"))
	svc := NewMeasurementService(db, &recordingPublisher{err: errors.New("nats down")})
	svc.Log(models.QuantumMeasurement{RoomID: "x"})
	svc.Close()

	noDeps := NewMeasurementService(nil, nil)
	noDeps.Log(models.QuantumMeasurement{RoomID: "x"})
	noDeps.Close()
}

func TestPlayerService(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemory()
	svc := NewPlayerService(db)

	_, err := svc.GetPlayerWithStats(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.GetPlayerWithStats(ctx, "bad id")
	assert.ErrorIs(t, err, ErrInvalidInput)

	u := newUser(t, db, "pat@example.com", 0)
	require.NoError(t, db.RecordCompletion(ctx, u.ID, 200, 1100))
	require.NoError(t, db.CreateAchievement(ctx, &models.UserAchievement{UserID: u.ID, AchievementID: "a"}))
	require.NoError(t, db.CreateLeaderboardEntry(ctx, &models.LeaderboardEntry{UserID: u.ID, Category: models.CategoryTotalScore}))

	p, err := svc.GetPlayerWithStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)
	assert.Equal(t, 1, p.Stats.GamesCompleted)
	assert.Equal(t, 1100, p.Stats.TotalScore)
	assert.Equal(t, 1, p.Stats.Achievements)
	assert.Equal(t, 1, p.Stats.LeaderboardEntries)
}

func TestProbabilityService_Measure(t *testing.T) {
	db := persistence.NewMemory()
	ms := NewMeasurementService(db, nil)
	svc := NewProbabilityService(rand.New(rand.NewSource(5)), ms, nil)

	res, err := svc.Measure(MeasureRequest{Die: "classical"})
	require.NoError(t, err)
	assert.Len(t, res.Rolls, 50)
	assert.Empty(t, res.Weights)
	assert.Empty(t, res.Stage)

	res, err = svc.Measure(MeasureRequest{Die: "quantum", Rolls: 200})
	require.NoError(t, err)
	assert.Len(t, res.Rolls, 200)
	assert.Len(t, res.Weights, 6)
	assert.Equal(t, 200, res.Summary.Count)

	// a session plays its own room: fixed roll count, weights hidden
	res, err = svc.Measure(MeasureRequest{Die: "quantum", Rolls: 200, SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, res.Rolls, probability.RollCount)
	assert.Empty(t, res.Weights)
	assert.Equal(t, probability.StageQuantumMeasured, res.Stage)

	_, err = svc.Measure(MeasureRequest{Die: "loaded"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Measure(MeasureRequest{Die: "quantum", Rolls: 5000})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Measure(MeasureRequest{Die: "quantum", SessionID: "bad id!"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ms.Close()
	saved := db.Measurements()
	require.Len(t, saved, 3)
	assert.Equal(t, "quantum_measurement", saved[2].MeasurementType)
	assert.Equal(t, "s1", saved[2].SessionID)
	assert.Equal(t, probability.RoomID, saved[2].RoomID)
}

func TestProbabilityService_Check(t *testing.T) {
	type booked struct {
		sessionID  string
		completion probability.Completion
	}
	var got []booked
	svc := NewProbabilityService(rand.New(rand.NewSource(9)), nil, func(ctx context.Context, sessionID string, c probability.Completion) {
		got = append(got, booked{sessionID, c})
	})

	_, err := svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: "1", Locker: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := svc.Measure(MeasureRequest{SessionID: "s1", Die: "quantum"})
	require.NoError(t, err)
	code := probability.ExpectedLockerCode(res.Summary.Histogram)
	require.NotEmpty(t, code)

	_, err = svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: code, Locker: 1})
	assert.ErrorIs(t, err, ErrInvalidInput, "classical die not measured yet")

	_, err = svc.Measure(MeasureRequest{SessionID: "s1", Die: "classical"})
	require.NoError(t, err)

	_, err = svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: code, Locker: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Check(context.Background(), CheckRequest{SessionID: "", Code: code, Locker: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	out, err := svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: "0", Locker: 1})
	require.NoError(t, err)
	assert.False(t, out.CodeCorrect)
	assert.Empty(t, got)

	locker := int(code[0] - '0')
	out, err = svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: code, Locker: locker})
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.Equal(t, 2, out.Attempts)

	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].sessionID)
	assert.Equal(t, probability.RoomID, got[0].completion.RoomID)
	assert.Equal(t, 2, got[0].completion.Attempts)
	assert.Equal(t, out.Score, got[0].completion.Score)

	_, err = svc.Check(context.Background(), CheckRequest{SessionID: "s1", Code: code, Locker: locker})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, got, 1)
}

func TestSessionService_RecordRoomCompletion(t *testing.T) {
	db := persistence.NewMemory()
	svc := NewSessionService(db, nil, nil)

	sess, err := svc.Start(context.Background(), "u1", "")
	require.NoError(t, err)
	require.NoError(t, svc.SaveProgress(context.Background(), persistence.Progress{
		SessionID:   sess.ID,
		CurrentRoom: "superposition",
		RoomTimes:   map[string]int{"superposition": 95},
	}))

	svc.RecordRoomCompletion(context.Background(), sess.ID, probability.Completion{
		RoomID: probability.RoomID, Time: 42 * time.Second, Attempts: 3, Score: 758,
	})

	stored, err := db.GetGameSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "superposition", stored.CurrentRoom)
	assert.Equal(t, map[string]int{"superposition": 95, probability.RoomID: 42}, stored.RoomTimes)
	assert.Equal(t, 3, stored.RoomAttempts[probability.RoomID])
	assert.Equal(t, 758, stored.RoomScores[probability.RoomID])

	// unknown sessions are logged and skipped
	svc.RecordRoomCompletion(context.Background(), "missing", probability.Completion{RoomID: probability.RoomID})
}
