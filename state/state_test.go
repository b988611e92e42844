package state

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/quantumquest/network"
	"github.com/wfunc/quantumquest/tower"
)

// MockState records which hooks were called.
type MockState struct {
	ID             string
	OnEnterCalled  bool
	OnExitCalled   bool
	OnUpdateCalled bool
}

func (m *MockState) OnEnter()      { m.OnEnterCalled = true }
func (m *MockState) OnExit()       { m.OnExitCalled = true }
func (m *MockState) OnUpdate()     { m.OnUpdateCalled = true }
func (m *MockState) GetID() string { return m.ID }

func (m *MockState) HandleAction(player Player, actionData []byte) error { return nil }

func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
	m.OnUpdateCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	assert.True(t, initialState.OnEnterCalled)
	assert.Equal(t, initialState, sm.GetCurrentState())
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset()

	require.NoError(t, sm.ChangeState(nextState))
	assert.True(t, initialState.OnExitCalled)
	assert.True(t, nextState.OnEnterCalled)
	assert.Equal(t, nextState, sm.GetCurrentState())
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)
	require.NoError(t, sm.AddTransition(stateA, stateB, func() bool { return true }))
	require.NoError(t, sm.AddTransition(stateB, stateC, func() bool { return false }))

	require.NoError(t, sm.ChangeState(stateB))
	assert.Equal(t, "B", sm.GetCurrentState().GetID())

	stateB.reset()
	err := sm.ChangeState(stateC)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Equal(t, "B", sm.GetCurrentState().GetID())
	assert.False(t, stateB.OnExitCalled)
	assert.False(t, stateC.OnEnterCalled)
}

type player string

func (p player) GetID() string { return string(p) }

type broadcast struct {
	msgID uint16
	data  []byte
}

// fakeRoom drives states without a timer or network.
type fakeRoom struct {
	t          *testing.T
	cfg        tower.Config
	seed       int64
	game       *tower.Game
	current    State
	pushes     int
	lastSteps  []*tower.StepResult
	broadcasts []broadcast
	restarts   int
}

func newFakeRoom(t *testing.T, levels ...tower.Level) *fakeRoom {
	cfg := tower.DefaultConfig()
	if len(levels) > 0 {
		cfg.Levels = levels
	}
	r := &fakeRoom{t: t, cfg: cfg, seed: 7}
	require.NoError(t, r.Restart())
	r.restarts = 0
	return r
}

func (r *fakeRoom) GetID() string                 { return "room-1" }
func (r *fakeRoom) GetPlayers() map[string]Player { return map[string]Player{"u1": player("u1")} }
func (r *fakeRoom) Game() *tower.Game             { return r.game }

func (r *fakeRoom) ChangeState(s State) error {
	if r.current != nil {
		r.current.OnExit()
	}
	r.current = s
	s.OnEnter()
	return nil
}

func (r *fakeRoom) Broadcast(msgID uint16, data []byte) error {
	r.broadcasts = append(r.broadcasts, broadcast{msgID, data})
	return nil
}

func (r *fakeRoom) Restart() error {
	g, err := tower.NewGame(r.cfg, rand.New(rand.NewSource(r.seed)))
	if err != nil {
		return err
	}
	r.game = g
	r.restarts++
	return nil
}

func (r *fakeRoom) PushState(last *tower.StepResult) {
	r.pushes++
	if last != nil {
		r.lastSteps = append(r.lastSteps, last)
	}
}

func (r *fakeRoom) act(a Action) error {
	data, err := json.Marshal(a)
	require.NoError(r.t, err)
	return r.current.HandleAction(player("u1"), data)
}

func pad(id int) *int { return &id }

// prepare transforms a pad until it is an in-phase superposition.
func (r *fakeRoom) prepare(id int) {
	r.t.Helper()
	for i := 0; i < 200; i++ {
		p, ok := r.game.Board().Pad(id)
		require.True(r.t, ok)
		if p.State == tower.Superposition && p.Phase == 0 {
			return
		}
		require.NoError(r.t, r.act(Action{Type: ActionTransform, Pad: pad(id)}))
	}
	r.t.Fatalf("pad %d never reached an in-phase superposition", id)
}

func TestTutorialState_Begin(t *testing.T) {
	r := newFakeRoom(t)
	require.NoError(t, r.ChangeState(NewTutorialState(r)))
	assert.Equal(t, 1, r.pushes)

	require.NoError(t, r.act(Action{Type: ActionHints}))
	assert.True(t, r.game.Hints())

	// the tutorial does not tick
	r.current.OnUpdate()
	assert.Equal(t, StateTutorial, r.current.GetID())

	require.NoError(t, r.act(Action{Type: ActionBegin}))
	assert.Equal(t, StateTower, r.current.GetID())
}

func TestTutorialState_GameplayStartsClimb(t *testing.T) {
	r := newFakeRoom(t)
	require.NoError(t, r.ChangeState(NewTutorialState(r)))

	require.NoError(t, r.act(Action{Type: ActionTransform, Pad: pad(2)}))
	assert.Equal(t, StateTower, r.current.GetID())
	p, _ := r.game.Board().Pad(2)
	assert.Equal(t, tower.Superposition, p.State)
}

func TestTutorialState_UnknownAction(t *testing.T) {
	r := newFakeRoom(t)
	require.NoError(t, r.ChangeState(NewTutorialState(r)))

	assert.ErrorIs(t, r.act(Action{Type: "dance"}), ErrUnknownAction)
	assert.ErrorIs(t, r.current.HandleAction(player("u1"), []byte("{")), ErrInvalidAction)
}

func TestTowerState_Actions(t *testing.T) {
	r := newFakeRoom(t)
	require.NoError(t, r.ChangeState(NewTowerState(r)))

	assert.ErrorIs(t, r.act(Action{Type: ActionStep}), ErrMissingPad)
	assert.ErrorIs(t, r.act(Action{Type: ActionTransform}), ErrMissingPad)
	assert.Error(t, r.act(Action{Type: ActionStep, Pad: pad(99)}))

	off := false
	require.NoError(t, r.act(Action{Type: ActionHints, Enabled: &off}))
	assert.False(t, r.game.Hints())

	// stepping on a ground-state pad collapses the board
	require.NoError(t, r.act(Action{Type: ActionStep, Pad: pad(2)}))
	require.Len(t, r.lastSteps, 1)
	assert.Equal(t, tower.Failed, r.lastSteps[0].Outcome)
	assert.Equal(t, 1, r.game.Attempts())

	require.NoError(t, r.act(Action{Type: ActionReset}))
	assert.False(t, r.game.Board().Collapsed)

	require.NoError(t, r.act(Action{Type: ActionRestart}))
	assert.Equal(t, 1, r.restarts)
	assert.Equal(t, 0, r.game.Attempts())
}

func TestTowerState_UpdateTicks(t *testing.T) {
	r := newFakeRoom(t)
	require.NoError(t, r.ChangeState(NewTowerState(r)))
	before := r.game.Snapshot().FloorTicksLeft

	pushes := r.pushes
	r.current.OnUpdate()
	assert.Equal(t, before-1, r.game.Snapshot().FloorTicksLeft)
	assert.Equal(t, pushes+1, r.pushes)
}

func TestTowerState_CompletesAndRestarts(t *testing.T) {
	r := newFakeRoom(t, tower.Level{Required: []int{2}, Description: "center"})
	require.NoError(t, r.ChangeState(NewTowerState(r)))

	r.prepare(2)
	require.NoError(t, r.act(Action{Type: ActionStep, Pad: pad(2)}))
	assert.Equal(t, StateCompleted, r.current.GetID())

	require.Len(t, r.broadcasts, 1)
	assert.Equal(t, uint16(network.MsgTypeTowerComplete), r.broadcasts[0].msgID)
	var msg CompletionMessage
	require.NoError(t, json.Unmarshal(r.broadcasts[0].data, &msg))
	assert.Equal(t, tower.RoomID, msg.RoomID)
	assert.Equal(t, 1, msg.Floors)
	assert.Equal(t, 0, msg.Attempts)
	assert.Positive(t, msg.Score)

	// other actions are ignored once finished
	require.NoError(t, r.act(Action{Type: ActionStep, Pad: pad(1)}))
	assert.Equal(t, StateCompleted, r.current.GetID())

	require.NoError(t, r.act(Action{Type: ActionRestart}))
	assert.Equal(t, StateTower, r.current.GetID())
	assert.False(t, r.game.Finished())
}

func TestStateMachine_CurrentStateID(t *testing.T) {
	sm := NewBaseStateMachine(&MockState{ID: "A"})
	assert.Equal(t, "A", sm.CurrentStateID())
	require.NoError(t, sm.ChangeState(&MockState{ID: "B"}))
	assert.Equal(t, "B", sm.CurrentStateID())
}
