// state/interfaces.go
package state

import "github.com/wfunc/quantumquest/tower"

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
}

// RoomContext is what a tower room exposes to its states. Implementations
// call states with the room's game lock held.
type RoomContext interface {
	GetID() string
	GetPlayers() map[string]Player
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	Game() *tower.Game
	// Restart replaces the game with a fresh run.
	Restart() error
	// PushState sends the current snapshot, with the step that produced it
	// when there was one.
	PushState(last *tower.StepResult)
}
