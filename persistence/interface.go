// Package persistence stores match records. Two implementations exist: a
// GORM one and a raw database/sql one on lib/pq, selectable via config.
package persistence

import (
	"errors"

	"github.com/wfunc/cursedcards/models"
)

// Database stores and queries completed-match data.
type Database interface {
	SaveMatchRecord(record *models.MatchRecord) error
	RecentMatches(limit int) ([]models.MatchRecord, error)
	MatchesForRoom(roomCode string) ([]models.MatchRecord, error)
	PlayerStats(name string) (*models.PlayerStats, error)
	Close() error
}

var ErrRecordNotFound = errors.New("record not found")
