// Package models holds the shapes shared between the record service, the
// persistence layer and the admin RPC.
package models

import (
	"time"
)

// MatchPlayer is one roster entry of a finished match.
type MatchPlayer struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Avatar   int    `json:"avatar"`
	Outcome  string `json:"outcome"` // win/lose
}

// MatchRecord is the durable summary of a completed match. Live game state
// is never persisted; only this end-of-match record is.
type MatchRecord struct {
	RoomCode   string        `json:"room_code"`
	Players    []MatchPlayer `json:"players"`
	WinnerName string        `json:"winner_name"`
	Turns      int           `json:"turns"`
	Duration   int           `json:"duration"` // seconds
	CreatedAt  time.Time     `json:"created_at"`
}

// PlayerStats is the per-name aggregate maintained alongside match records.
type PlayerStats struct {
	Name       string `json:"name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}
