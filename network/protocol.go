package network

const (
	MsgTypeHeartbeat = 1
	// MsgTypeAuth binds the connection to a user: {"token": "..."}.
	MsgTypeAuth = 2

	MsgTypeLeaveRoom  = 102
	MsgTypeStartTower = 103 // {"hints": bool, "game_session_id": "..."}

	// MsgTypePlayerAction carries {"type": "begin|transform|step|reset|hints|restart", ...}.
	MsgTypePlayerAction = 202

	MsgTypeRoomState     = 301
	MsgTypeTowerState    = 304
	MsgTypeTowerComplete = 305

	MsgTypeError = 500
)
