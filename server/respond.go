package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/room"
	"github.com/wfunc/quantumquest/services"
	"github.com/wfunc/quantumquest/state"
	"github.com/wfunc/quantumquest/tower"
)

const requestTimeout = 5 * time.Second

const genericError = "An error occurred. Please try again later."

var (
	errBadJSON        = &services.InputError{Msg: "Invalid JSON body"}
	errMissingToken   = errors.New("authorization token required")
	errBadPacket      = errors.New("malformed packet")
	errUnknownMessage = errors.New("unknown message type")
	errNotInRoom      = errors.New("not in a room")
	errForeignSession = errors.New("game session belongs to another player")
)

// errorStatus maps an error to a status code and a message safe to show.
func errorStatus(err error) (int, string) {
	var input *services.InputError
	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest, input.Msg
	case errors.Is(err, services.ErrUserExists):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, errMissingToken):
		return http.StatusUnauthorized, "Authorization token required"
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	}
	return http.StatusInternalServerError, genericError
}

// packetErrorMessage is errorStatus for websocket errors; game rule errors
// are shown as they are.
func packetErrorMessage(err error) string {
	for _, known := range []error{
		errBadPacket, errUnknownMessage, errNotInRoom, errForeignSession,
		state.ErrInvalidAction, state.ErrUnknownAction, state.ErrMissingPad,
		tower.ErrUnknownPad, room.ErrRoomClosed, room.ErrRoomFull,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	_, msg := errorStatus(err)
	if msg == genericError {
		logger.Log.Errorf("Packet handling failed: %v", err)
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("Write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}
