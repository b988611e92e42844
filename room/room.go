// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/network"
	"github.com/wfunc/quantumquest/session"
	"github.com/wfunc/quantumquest/state"
	"github.com/wfunc/quantumquest/timer"
	"github.com/wfunc/quantumquest/tower"
)

var (
	ErrRoomExists = errors.New("room already exists")
	ErrRoomFull   = errors.New("room is full")
	ErrRoomClosed = errors.New("room is closed")
)

// Broadcaster delivers room messages. It lives here so broadcast can import
// room without a cycle.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// RoomStatus is the business status derived from the room's state.
type RoomStatus int

const (
	StatusIdle RoomStatus = iota
	StatusTutorial
	StatusClimbing
	StatusSettlement
)

func (s RoomStatus) String() string {
	switch s {
	case StatusTutorial:
		return "tutorial"
	case StatusClimbing:
		return "climbing"
	case StatusSettlement:
		return "settlement"
	default:
		return "idle"
	}
}

// Config describes the tower run a room hosts.
type Config struct {
	Name       string
	MaxPlayers int
	Tower      tower.Config
	// Tick is the wall-clock length of one game tick.
	Tick  time.Duration
	Hints bool
	// Seed fixes the board layouts; zero seeds from the clock.
	Seed int64
	Sink tower.MeasurementSink
	// OnComplete runs in its own goroutine once per finished run.
	OnComplete func(r *Room, c tower.Completion)
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "Superposition Tower"
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 1
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if len(c.Tower.Levels) == 0 {
		c.Tower = tower.DefaultConfig()
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// TowerStateMessage is pushed to players after every change and tick.
type TowerStateMessage struct {
	RoomID   string            `json:"room_id"`
	Snapshot tower.Snapshot    `json:"snapshot"`
	Last     *tower.StepResult `json:"last,omitempty"`
}

// Room hosts one tower run. The game lock serialises player actions and
// ticks, and states run with it held.
type Room struct {
	ID           string
	Name         string
	MaxPlayers   int
	Players      map[string]*session.Session // sessionID -> session
	StateMachine state.StateMachine
	CreatedAt    time.Time

	cfg         Config
	broadcaster Broadcaster
	timers      *timer.TimerManager
	timerID     int64
	rng         *rand.Rand
	game        *tower.Game
	gameMutex   sync.Mutex
	started     bool
	closed      bool
	playerMutex sync.RWMutex
}

// NewRoom lays out the first floor and parks the room in the tutorial.
// Nothing is sent or ticked until Start.
func NewRoom(id string, cfg Config, broadcaster Broadcaster, timers *timer.TimerManager) (*Room, error) {
	cfg = cfg.withDefaults()
	room := &Room{
		ID:          id,
		Name:        cfg.Name,
		MaxPlayers:  cfg.MaxPlayers,
		Players:     make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		cfg:         cfg,
		broadcaster: broadcaster,
		timers:      timers,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}
	game, err := room.newGame()
	if err != nil {
		return nil, err
	}
	room.game = game

	machine := state.NewBaseStateMachine(state.NewTutorialState(room))
	towerState := state.NewTowerState(room)
	completed := state.NewCompletedState(room)
	_ = machine.AddTransition(towerState, completed, func() bool { return room.game.Finished() })
	_ = machine.AddTransition(completed, towerState, func() bool { return !room.game.Finished() })
	room.StateMachine = machine
	return room, nil
}

func (r *Room) newGame() (*tower.Game, error) {
	opts := []tower.Option{
		tower.WithHints(r.cfg.Hints),
		tower.WithCompletion(func(c tower.Completion) {
			if r.cfg.OnComplete != nil {
				go r.cfg.OnComplete(r, c)
			}
		}),
	}
	if r.cfg.Sink != nil {
		opts = append(opts, tower.WithSink(r.cfg.Sink))
	}
	return tower.NewGame(r.cfg.Tower, rand.New(rand.NewSource(r.rng.Int63())), opts...)
}

// Start sends the first snapshot and begins ticking.
func (r *Room) Start() {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	r.PushState(nil)
	if r.timers != nil {
		r.timerID = r.timers.AddTimer(r.cfg.Tick, r.cfg.Tick, r.Update)
	}
}

// --- state.RoomContext ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) GetMaxPlayers() int {
	return r.MaxPlayers
}

// GetPlayers returns a copy keyed by session id.
func (r *Room) GetPlayers() map[string]state.Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	players := make(map[string]state.Player)
	for k, v := range r.Players {
		players[k] = v
	}
	return players
}

func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// Broadcast sends a message to all players in the room.
func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

// Game is only safe to use under the game lock, which states already hold.
func (r *Room) Game() *tower.Game {
	return r.game
}

func (r *Room) Restart() error {
	game, err := r.newGame()
	if err != nil {
		return err
	}
	r.game = game
	return nil
}

func (r *Room) PushState(last *tower.StepResult) {
	if !r.started || r.closed {
		return
	}
	data, err := json.Marshal(TowerStateMessage{
		RoomID:   r.ID,
		Snapshot: r.game.Snapshot(),
		Last:     last,
	})
	if err != nil {
		logger.Log.Errorf("Room %s: marshal state: %v", r.ID, err)
		return
	}
	if err := r.Broadcast(network.MsgTypeTowerState, data); err != nil {
		logger.Log.Debugf("Room %s: push state: %v", r.ID, err)
	}
}

// --- players ---

func (r *Room) AddPlayer(s *session.Session) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if len(r.Players) >= r.MaxPlayers {
		return false
	}

	r.Players[s.ID] = s
	s.RoomID = r.ID
	return true
}

func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if player, exists := r.Players[sessionID]; exists {
		player.RoomID = ""
		delete(r.Players, sessionID)
	}
}

func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// --- game loop ---

// HandleAction hands a player action to the current state.
func (r *Room) HandleAction(player state.Player, actionData []byte) error {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	return r.StateMachine.GetCurrentState().HandleAction(player, actionData)
}

// Update is the tick callback.
func (r *Room) Update() {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	if r.closed {
		return
	}
	if current := r.StateMachine.GetCurrentState(); current != nil {
		current.OnUpdate()
	}
}

// Snapshot copies the current game state.
func (r *Room) Snapshot() tower.Snapshot {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	return r.game.Snapshot()
}

func (r *Room) GetStatus() RoomStatus {
	switch r.StateMachine.CurrentStateID() {
	case state.StateTutorial:
		return StatusTutorial
	case state.StateTower:
		return StatusClimbing
	case state.StateCompleted:
		return StatusSettlement
	}
	return StatusIdle
}

// Close stops the ticks. Later actions fail with ErrRoomClosed.
func (r *Room) Close() {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timers != nil && r.timerID != 0 {
		r.timers.RemoveTimer(r.timerID)
	}
}

// --- manager ---

// Manager tracks live rooms. Rooms share one timer manager for their ticks.
type Manager struct {
	rooms  map[string]*Room
	timers *timer.TimerManager
	mutex  sync.RWMutex
}

func NewRoomManager(timers *timer.TimerManager) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		timers: timers,
	}
}

// CreateRoom registers a new room, seats owner in it and starts it. The id
// is claimed before the owner is touched, so a taken id leaves the owner's
// session as it was.
func (m *Manager) CreateRoom(id string, owner *session.Session, cfg Config, broadcaster Broadcaster) (*Room, error) {
	room, err := NewRoom(id, cfg, broadcaster, m.timers)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	if _, exists := m.rooms[id]; exists {
		m.mutex.Unlock()
		return nil, ErrRoomExists
	}
	m.rooms[id] = room
	m.mutex.Unlock()

	if owner != nil && !room.AddPlayer(owner) {
		m.mutex.Lock()
		delete(m.rooms, id)
		m.mutex.Unlock()
		room.Close()
		return nil, ErrRoomFull
	}

	room.Start()
	logger.Log.Infof("Room %s created", id)
	return room, nil
}

// RemoveRoom unregisters and closes a room.
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	delete(m.rooms, id)
	m.mutex.Unlock()

	if exists {
		for _, s := range room.GetSessions() {
			room.RemovePlayer(s.ID)
		}
		room.Close()
	}
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
