package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/network"
)

const (
	StateTutorial  = "tutorial"
	StateTower     = "tower"
	StateCompleted = "completed"
)

// Action types.
const (
	ActionBegin     = "begin"
	ActionTransform = "transform"
	ActionStep      = "step"
	ActionReset     = "reset"
	ActionHints     = "hints"
	ActionRestart   = "restart"
)

var (
	ErrInvalidAction = errors.New("invalid action data")
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingPad    = errors.New("action needs a pad")
)

// Action represents a player action that can be unmarshalled from a packet.
type Action struct {
	Type    string `json:"type"`
	Pad     *int   `json:"pad,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func parseAction(actionData []byte) (Action, error) {
	var action Action
	if err := json.Unmarshal(actionData, &action); err != nil {
		return action, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return action, nil
}

func setHints(room RoomContext, action Action) {
	enabled := !room.Game().Hints()
	if action.Enabled != nil {
		enabled = *action.Enabled
	}
	room.Game().SetHints(enabled)
	room.PushState(nil)
}

// TutorialState is the briefing before the first floor. Clocks do not run.
type TutorialState struct {
	RoomStateBase
}

func NewTutorialState(room RoomContext) *TutorialState {
	return &TutorialState{RoomStateBase{ID: StateTutorial, Room: room}}
}

func (s *TutorialState) OnEnter() {
	s.Room.PushState(nil)
}

// HandleAction starts the climb on "begin". Gameplay actions start it too
// and are then applied.
func (s *TutorialState) HandleAction(player Player, actionData []byte) error {
	action, err := parseAction(actionData)
	if err != nil {
		return err
	}

	switch action.Type {
	case ActionHints:
		setHints(s.Room, action)
		return nil
	case ActionBegin:
		return s.Room.ChangeState(NewTowerState(s.Room))
	case ActionTransform, ActionStep, ActionReset:
		next := NewTowerState(s.Room)
		if err := s.Room.ChangeState(next); err != nil {
			return err
		}
		return next.HandleAction(player, actionData)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
}

// TowerState is live play: actions drive the game and each room tick
// advances its countdowns.
type TowerState struct {
	RoomStateBase
}

func NewTowerState(room RoomContext) *TowerState {
	return &TowerState{RoomStateBase{ID: StateTower, Room: room}}
}

func (s *TowerState) OnEnter() {
	logger.Log.Infof("Room %s climbing the tower", s.Room.GetID())
	s.Room.PushState(nil)
}

func (s *TowerState) OnUpdate() {
	s.Room.Game().Tick()
	s.Room.PushState(nil)
}

func (s *TowerState) HandleAction(player Player, actionData []byte) error {
	action, err := parseAction(actionData)
	if err != nil {
		return err
	}
	game := s.Room.Game()

	switch action.Type {
	case ActionBegin:
		return nil
	case ActionHints:
		setHints(s.Room, action)
		return nil
	case ActionReset:
		game.Reset()
		s.Room.PushState(nil)
		return nil
	case ActionRestart:
		if err := s.Room.Restart(); err != nil {
			return err
		}
		s.Room.PushState(nil)
		return nil
	case ActionTransform:
		if action.Pad == nil {
			return ErrMissingPad
		}
		if err := game.Transform(*action.Pad); err != nil {
			return err
		}
		s.Room.PushState(nil)
		return nil
	case ActionStep:
		if action.Pad == nil {
			return ErrMissingPad
		}
		res, err := game.Step(*action.Pad)
		if err != nil {
			return err
		}
		s.Room.PushState(&res)
		if game.Finished() {
			return s.Room.ChangeState(NewCompletedState(s.Room))
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
}

// CompletionMessage is sent once when the run finishes.
type CompletionMessage struct {
	RoomID   string `json:"room_id"`
	Score    int    `json:"score"`
	Attempts int    `json:"attempts"`
	TimeMS   int64  `json:"time_ms"`
	Floors   int    `json:"floors"`
}

// CompletedState holds the finished run until the player restarts.
type CompletedState struct {
	RoomStateBase
}

func NewCompletedState(room RoomContext) *CompletedState {
	return &CompletedState{RoomStateBase{ID: StateCompleted, Room: room}}
}

func (s *CompletedState) OnEnter() {
	game := s.Room.Game()
	c, _ := game.Completion()
	logger.Log.Infof("Room %s finished the tower: score %d, attempts %d, %s", s.Room.GetID(), c.Score, c.Attempts, c.Time)

	data, err := json.Marshal(CompletionMessage{
		RoomID:   c.RoomID,
		Score:    c.Score,
		Attempts: c.Attempts,
		TimeMS:   c.Time.Milliseconds(),
		Floors:   game.FloorCount(),
	})
	if err != nil {
		logger.Log.Errorf("Error marshalling completion: %v", err)
		return
	}
	if err := s.Room.Broadcast(network.MsgTypeTowerComplete, data); err != nil {
		logger.Log.Warnf("Room %s completion broadcast: %v", s.Room.GetID(), err)
	}
}

func (s *CompletedState) HandleAction(player Player, actionData []byte) error {
	action, err := parseAction(actionData)
	if err != nil {
		return err
	}
	if action.Type != ActionRestart {
		return nil
	}
	if err := s.Room.Restart(); err != nil {
		return err
	}
	return s.Room.ChangeState(NewTowerState(s.Room))
}
