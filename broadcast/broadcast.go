// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/room"
	"github.com/wfunc/quantumquest/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// RoomBroadcaster sends to sessions found through the room and session managers.
// Send failures are logged and skipped; the read loop cleans up dead sessions.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}
	send(r.GetSessions(), msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	send(b.sessionManager.All(), msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		send(b.sessionManager.GetByUserID(userID), msgID, data)
	}
	return nil
}

func send(sessions []*session.Session, msgID uint16, data []byte) {
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("Send %d to session %s failed: %v", msgID, s.ID, err)
		}
	}
}
