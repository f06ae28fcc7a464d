// Package services bridges finished games to the persistence layer. All
// methods are safe to call with no database configured; recording is then a
// no-op.
package services

import (
	"time"

	"github.com/wfunc/cursedcards/game"
	"github.com/wfunc/cursedcards/models"
	"github.com/wfunc/cursedcards/persistence"
)

type RecordService struct {
	db persistence.Database
}

// NewRecordService accepts a nil database when persistence is disabled.
func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// SaveFinishedMatch converts an end-of-game summary into a match record.
func (s *RecordService) SaveFinishedMatch(summary game.Summary, startedAt time.Time) error {
	if s.db == nil {
		return nil
	}

	players := make([]models.MatchPlayer, 0, len(summary.Players))
	for _, p := range summary.Players {
		outcome := "lose"
		if p.ID == summary.WinnerID {
			outcome = "win"
		}
		players = append(players, models.MatchPlayer{
			PlayerID: p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Outcome:  outcome,
		})
	}

	record := &models.MatchRecord{
		RoomCode:   summary.RoomCode,
		Players:    players,
		WinnerName: summary.WinnerName,
		Turns:      summary.TurnNumber,
		Duration:   int(time.Since(startedAt).Seconds()),
		CreatedAt:  time.Now(),
	}
	return s.db.SaveMatchRecord(record)
}

func (s *RecordService) RecentMatches(limit int) ([]models.MatchRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.RecentMatches(limit)
}

func (s *RecordService) MatchesForRoom(roomCode string) ([]models.MatchRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.MatchesForRoom(roomCode)
}

func (s *RecordService) PlayerStats(name string) (*models.PlayerStats, error) {
	if s.db == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.db.PlayerStats(name)
}
