package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/services"
)

type response map[string]interface{}

func (s *GameServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{
		"message":  "Quantum Quest API",
		"status":   "running",
		"database": s.databaseStatus(r.Context()),
		"rooms":    s.roomManager.Count(),
	})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{
		"status":    "healthy",
		"database":  s.databaseStatus(r.Context()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *GameServer) databaseStatus(ctx context.Context) string {
	if s.svc.DB == nil {
		return "disconnected"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.svc.DB.Ping(ctx); err != nil {
		logger.Log.Warnf("Database ping failed: %v", err)
		return "disconnected"
	}
	return "connected"
}

// --- auth ---

func (s *GameServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, token, err := s.svc.Auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{
		"success": true,
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

type loginRequest struct {
	Email string `json:"email"`
}

func (s *GameServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, token, err := s.svc.Auth.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (s *GameServer) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, r, errMissingToken)
		return
	}
	user, err := s.svc.Auth.CurrentUser(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "user": user})
}

// --- game ---

func (s *GameServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{"success": true, "rooms": models.Rooms})
}

type startRequest struct {
	UserID     string `json:"user_id"`
	Difficulty string `json:"difficulty"`
}

func (s *GameServer) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.svc.Sessions.Start(r.Context(), req.UserID, req.Difficulty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		"success":    true,
		"message":    "Game session started",
		"session_id": sess.ID,
		"session":    sess,
	})
}

func (s *GameServer) handleCompleteGame(w http.ResponseWriter, r *http.Request) {
	var req services.CompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Sessions.Complete(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		"success":           true,
		"message":           "Game completed successfully",
		"score":             res.Score,
		"time":              res.Time,
		"leaderboard_entry": res.LeaderboardEntry,
	})
}

type progressRequest struct {
	SessionID    string         `json:"session_id"`
	CurrentRoom  string         `json:"current_room"`
	RoomTimes    map[string]int `json:"room_times"`
	RoomAttempts map[string]int `json:"room_attempts"`
	RoomScores   map[string]int `json:"room_scores"`
}

func (s *GameServer) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.svc.Sessions.SaveProgress(r.Context(), persistence.Progress{
		SessionID:    req.SessionID,
		CurrentRoom:  req.CurrentRoom,
		RoomTimes:    req.RoomTimes,
		RoomAttempts: req.RoomAttempts,
		RoomScores:   req.RoomScores,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "message": "Progress saved"})
}

// --- leaderboard and players ---

func (s *GameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind == "" {
		kind = r.URL.Query().Get("type")
	}
	if kind == "" {
		kind = services.KindScore
	}
	lb, err := s.svc.Leaderboard.Get(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		"success":     true,
		"leaderboard": lb.Entries,
		"type":        lb.Type,
		"source":      lb.Source,
	})
}

func (s *GameServer) handlePlayer(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Players.GetPlayerWithStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "player": profile})
}

// --- measurements, achievements, probability ---

// handleMeasurement never fails the client; bad input is only logged.
func (s *GameServer) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	var m models.QuantumMeasurement
	if err := decodeJSON(r, &m); err != nil {
		logger.Log.Warnf("Dropping malformed measurement: %v", err)
	} else if s.svc.Measurements != nil {
		m.ID = 0
		if m.MeasuredAt.IsZero() {
			m.MeasuredAt = time.Now()
		}
		s.svc.Measurements.Log(m)
	}
	writeJSON(w, http.StatusOK, response{"success": true, "message": "Measurement logged"})
}

func (s *GameServer) handleRecentMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &services.InputError{Msg: "limit must be a number"})
			return
		}
		limit = n
	}
	if s.svc.Measurements == nil {
		writeJSON(w, http.StatusOK, response{"success": true, "measurements": []models.QuantumMeasurement{}})
		return
	}
	out, err := s.svc.Measurements.Recent(r.Context(), q.Get("room_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "measurements": out})
}

func (s *GameServer) handleUnlockAchievement(w http.ResponseWriter, r *http.Request) {
	var req services.UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Achievements.Unlock(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "message": "Achievement unlocked"})
}

func (s *GameServer) handleProbabilityMeasure(w http.ResponseWriter, r *http.Request) {
	var req services.MeasureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Probability.Measure(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "result": res})
}

func (s *GameServer) handleProbabilityCheck(w http.ResponseWriter, r *http.Request) {
	var req services.CheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Probability.Check(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{"success": true, "result": res})
}
