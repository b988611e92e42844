package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/quantumquest/broadcast"
	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/monitor"
	"github.com/wfunc/quantumquest/network"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/room"
	qqrpc "github.com/wfunc/quantumquest/rpc"
	"github.com/wfunc/quantumquest/services"
	"github.com/wfunc/quantumquest/session"
	"github.com/wfunc/quantumquest/timer"
	"github.com/wfunc/quantumquest/tower"
)

// HeartbeatInterval is how often clients are expected to send something.
// A connection silent for twice as long is dropped.
const HeartbeatInterval = 30 * time.Second

// Options configures a GameServer.
type Options struct {
	Addr           string
	RPCAddr        string // empty disables the RPC listener
	AllowedOrigins []string
	ReadTimeout    time.Duration
	Tower          tower.Config
	Tick           time.Duration
}

// Services is the backend the server exposes.
type Services struct {
	DB           persistence.Database
	Auth         *services.AuthService
	Sessions     *services.SessionService
	Leaderboard  *services.LeaderboardService
	Achievements *services.AchievementService
	Players      *services.PlayerService
	Measurements *services.MeasurementService
	Probability  *services.ProbabilityService
}

type GameServer struct {
	opts           Options
	svc            Services
	upgrader       websocket.Upgrader
	router         chi.Router
	httpServer     *http.Server
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	rpcServer      *qqrpc.Server
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(opts Options, svc Services, timers *timer.TimerManager, mon *monitor.Monitor) (*GameServer, error) {
	if mon == nil {
		mon = monitor.NewMonitor("quantumquest")
	}
	if len(opts.Tower.Levels) == 0 {
		opts.Tower = tower.DefaultConfig()
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}

	s := &GameServer{
		opts:           opts,
		svc:            svc,
		roomManager:    room.NewRoomManager(timers),
		sessionManager: session.NewManager(),
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	if opts.RPCAddr != "" {
		rpcServer, err := qqrpc.NewServer(opts.RPCAddr, qqrpc.NewGameService(svc.Players, svc.Leaderboard))
		if err != nil {
			return nil, err
		}
		s.rpcServer = rpcServer
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: opts.ReadTimeout,
	}
	return s, nil
}

func (s *GameServer) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *GameServer) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.monitor.Handler())
	s.router.Get("/ws", s.handleWebSocket)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.observeMiddleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/signin", s.handleLogin)
			r.Get("/user", s.handleCurrentUser)
		})
		r.Route("/game", func(r chi.Router) {
			r.Get("/rooms", s.handleRooms)
			r.Post("/start", s.handleStartGame)
			r.Post("/complete", s.handleCompleteGame)
			r.Post("/save-progress", s.handleSaveProgress)
		})
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/{kind}", s.handleLeaderboard)
		r.Get("/players/{id}", s.handlePlayer)
		r.Post("/quantum/measurements", s.handleMeasurement)
		r.Get("/quantum/measurements", s.handleRecentMeasurements)
		r.Post("/achievements/unlock", s.handleUnlockAchievement)
		r.Post("/probability/measure", s.handleProbabilityMeasure)
		r.Post("/probability/check", s.handleProbabilityCheck)
	})
}

// Handler exposes the router, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting work, drops live connections and closes rooms.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		err = s.httpServer.Shutdown(ctx)
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
	})
	return err
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logger.Log.Warnf("Rejected websocket origin %s", origin)
	return false
}

// observeMiddleware logs each API request and counts it by route pattern.
func (s *GameServer) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.monitor.ObserveHTTPRequest(route, status)
		logger.Log.Debugf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, status, time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// --- live play ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(HeartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.leaveRoom(sess)
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			start := time.Now()
			s.monitor.IncMessagesReceived()
			s.handlePacket(sess, packet)
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeAuth:
		s.handleAuth(sess, packet)
	case network.MsgTypeStartTower:
		s.handleStartTower(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.leaveRoom(sess)
	case network.MsgTypePlayerAction:
		s.handleGameAction(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.sendError(sess, errUnknownMessage)
	}
}

type authRequest struct {
	Token string `json:"token"`
}

func (s *GameServer) handleAuth(sess *session.Session, packet *network.Packet) {
	var req authRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, errBadPacket)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := s.svc.Auth.CurrentUser(ctx, req.Token)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	sess.Bind(user.ID)
	s.send(sess, network.MsgTypeAuth, map[string]string{"user_id": user.ID, "username": user.Username})
}

type startTowerRequest struct {
	Hints         bool   `json:"hints"`
	GameSessionID string `json:"game_session_id"`
}

// RoomInfo answers MsgTypeStartTower.
type RoomInfo struct {
	RoomID        string `json:"room_id"`
	GameSessionID string `json:"game_session_id"`
	Status        string `json:"status"`
}

func (s *GameServer) handleStartTower(sess *session.Session, packet *network.Packet) {
	var req startTowerRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			s.sendError(sess, errBadPacket)
			return
		}
	}
	s.leaveRoom(sess)

	switch {
	case req.GameSessionID != "":
		if err := s.checkGameSession(sess, req.GameSessionID); err != nil {
			s.sendError(sess, err)
			return
		}
		sess.SetGameSession(req.GameSessionID)
	case sess.User() != "" && s.svc.Sessions != nil:
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		gs, err := s.svc.Sessions.Start(ctx, sess.User(), "")
		cancel()
		if err == nil {
			sess.SetGameSession(gs.ID)
		}
	}

	var sink tower.MeasurementSink
	if s.svc.Measurements != nil {
		sink = s.svc.Measurements.Sink(sess.GameSession())
	}
	cfg := room.Config{
		Tower:      s.opts.Tower,
		Tick:       s.opts.Tick,
		Hints:      req.Hints,
		Sink:       s.monitor.TowerSink(sink),
		OnComplete: s.towerCompleted(sess),
	}

	roomID := uuid.New().String()
	s.send(sess, network.MsgTypeRoomState, RoomInfo{
		RoomID:        roomID,
		GameSessionID: sess.GameSession(),
		Status:        room.StatusTutorial.String(),
	})
	if _, err := s.roomManager.CreateRoom(roomID, sess, cfg, s.broadcaster); err != nil {
		logger.Log.Errorf("Session %s failed to create room: %v", sess.GetID(), err)
		s.sendError(sess, err)
		return
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
	logger.Log.Infof("Session %s started the tower in room %s", sess.GetID(), roomID)
}

// checkGameSession lets a player resume a game session only when it is theirs.
func (s *GameServer) checkGameSession(sess *session.Session, id string) error {
	if !services.ValidID(id) {
		return &services.InputError{Msg: "Invalid session ID"}
	}
	if sess.User() == "" {
		return errMissingToken
	}
	if s.svc.Sessions == nil {
		return services.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	owner, err := s.svc.Sessions.UserForSession(ctx, id)
	if err != nil {
		return err
	}
	if owner != sess.User() {
		logger.Log.Warnf("Session %s (user %s) tried to bind game session %s of %s", sess.GetID(), sess.User(), id, owner)
		return errForeignSession
	}
	return nil
}

// towerCompleted books finished runs for authenticated players.
func (s *GameServer) towerCompleted(sess *session.Session) func(*room.Room, tower.Completion) {
	return func(r *room.Room, c tower.Completion) {
		s.monitor.ObserveTowerScore(c.Score)
		userID := sess.User()
		if userID == "" || s.svc.Sessions == nil {
			logger.Log.Infof("Room %s finished by an anonymous player, score %d", r.GetID(), c.Score)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := s.svc.Sessions.RecordTowerCompletion(ctx, userID, sess.GameSession(), c); err != nil {
			logger.Log.Warnf("Failed to record tower completion for %s: %v", userID, err)
		}
	}
}

func (s *GameServer) leaveRoom(sess *session.Session) {
	if sess.RoomID == "" {
		return
	}
	s.roomManager.RemoveRoom(sess.RoomID)
	s.monitor.SetActiveRooms(s.roomManager.Count())
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) {
	if sess.RoomID == "" {
		logger.Log.Warnf("Session %s sent game action but is not in a room", sess.GetID())
		s.sendError(sess, errNotInRoom)
		return
	}

	r, exists := s.roomManager.GetRoom(sess.RoomID)
	if !exists {
		logger.Log.Errorf("Room %s not found for session %s", sess.RoomID, sess.GetID())
		s.sendError(sess, errNotInRoom)
		return
	}

	if err := r.HandleAction(sess, packet.Data); err != nil {
		logger.Log.Debugf("Action rejected in room %s: %v", r.GetID(), err)
		s.sendError(sess, err)
	}
}

func (s *GameServer) send(sess *session.Session, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("Marshal message %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Debugf("Send %d to session %s: %v", msgID, sess.GetID(), err)
	}
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	s.send(sess, network.MsgTypeError, map[string]string{"error": packetErrorMessage(err)})
}
