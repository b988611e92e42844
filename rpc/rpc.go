package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/models"
	"github.com/wfunc/quantumquest/services"
)

// CallTimeout bounds the store work behind one RPC call.
const CallTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr and registers the services to expose.
func NewServer(addr string, rcvrs ...interface{}) (*Server, error) {
	server := rpc.NewServer()
	for _, rcvr := range rcvrs {
		if err := server.Register(rcvr); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   server,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService exposes player and leaderboard lookups to other backends.
type GameService struct {
	playerService      *services.PlayerService
	leaderboardService *services.LeaderboardService
}

func NewGameService(ps *services.PlayerService, ls *services.LeaderboardService) *GameService {
	return &GameService{playerService: ps, leaderboardService: ls}
}

type GetPlayerArgs struct {
	UserID string
}

type GetPlayerReply struct {
	Profile services.PlayerProfile
}

// GetPlayerWithStats follows the net/rpc signature: exported arguments, a
// pointer reply and an error result.
func (gs *GameService) GetPlayerWithStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()

	profile, err := gs.playerService.GetPlayerWithStats(ctx, args.UserID)
	if err != nil {
		return err
	}
	reply.Profile = *profile
	return nil
}

type TopScoresArgs struct {
	Limit int
}

type TopScoresReply struct {
	Rows []models.LeaderboardRow
}

func (gs *GameService) TopScores(args *TopScoresArgs, reply *TopScoresReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()

	rows, err := gs.leaderboardService.TopScores(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Rows = rows
	return nil
}
