package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/wfunc/cursedcards/models"
)

// PostgreSQL is the raw database/sql match store.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            room_code VARCHAR(8) NOT NULL,
            players JSONB NOT NULL,
            winner_name VARCHAR(64) NOT NULL,
            turns INT NOT NULL DEFAULT 0,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats (
            id SERIAL PRIMARY KEY,
            name VARCHAR(64) UNIQUE NOT NULL,
            total_games INT NOT NULL DEFAULT 0,
            wins INT NOT NULL DEFAULT 0,
            losses INT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_match_records_room_code ON match_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_match_records_created_at ON match_records(created_at);
    `)

	return err
}

func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO match_records (room_code, players, winner_name, turns, duration, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, record.RoomCode, playersJSON, record.WinnerName, record.Turns, record.Duration, record.CreatedAt)
	if err != nil {
		return err
	}

	for _, mp := range record.Players {
		win := 0
		loss := 1
		if mp.Outcome == "win" {
			win = 1
			loss = 0
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO player_stats (name, total_games, wins, losses, updated_at)
            VALUES ($1, 1, $2, $3, CURRENT_TIMESTAMP)
            ON CONFLICT (name) DO UPDATE SET
                total_games = player_stats.total_games + 1,
                wins = player_stats.wins + $2,
                losses = player_stats.losses + $3,
                updated_at = CURRENT_TIMESTAMP
        `, mp.Name, win, loss)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (p *PostgreSQL) RecentMatches(limit int) ([]models.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_code, players, winner_name, turns, duration, created_at
        FROM match_records ORDER BY created_at DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (p *PostgreSQL) MatchesForRoom(roomCode string) ([]models.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_code, players, winner_name, turns, duration, created_at
        FROM match_records WHERE room_code = $1 ORDER BY created_at DESC
    `, roomCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (p *PostgreSQL) PlayerStats(name string) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats := &models.PlayerStats{}
	err := p.db.QueryRowContext(ctx, `
        SELECT name, total_games, wins, losses FROM player_stats WHERE name = $1
    `, name).Scan(&stats.Name, &stats.TotalGames, &stats.Wins, &stats.Losses)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

func scanRecords(rows *sql.Rows) ([]models.MatchRecord, error) {
	var records []models.MatchRecord
	for rows.Next() {
		var record models.MatchRecord
		var playersJSON []byte
		if err := rows.Scan(&record.RoomCode, &playersJSON, &record.WinnerName,
			&record.Turns, &record.Duration, &record.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(playersJSON, &record.Players); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
