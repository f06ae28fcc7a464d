// Package rpc exposes a small net/rpc admin surface: live room listing and
// match history.
package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/cursedcards/logger"
	"github.com/wfunc/cursedcards/models"
	"github.com/wfunc/cursedcards/room"
	"github.com/wfunc/cursedcards/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes the RPC methods. Methods follow the net/rpc
// signature: exported, args struct, pointer reply, error return.
type AdminService struct {
	rooms   *room.Manager
	records *services.RecordService
}

func NewAdminService(rooms *room.Manager, records *services.RecordService) *AdminService {
	return &AdminService{rooms: rooms, records: records}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Codes []string
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Codes = a.rooms.Codes()
	return nil
}

type RecentMatchesArgs struct {
	Limit int
}

type RecentMatchesReply struct {
	Matches []models.MatchRecord
}

func (a *AdminService) RecentMatches(args *RecentMatchesArgs, reply *RecentMatchesReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	matches, err := a.records.RecentMatches(limit)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}

type PlayerStatsArgs struct {
	Name string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (a *AdminService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := a.records.PlayerStats(args.Name)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}
