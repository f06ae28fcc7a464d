package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/cursedcards/models"
)

// GormPostgreSQL is the GORM-backed match store.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&matchRecordModel{}, &playerStatsModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

type matchRecordModel struct {
	ID         uint   `gorm:"primaryKey"`
	RoomCode   string `gorm:"index;not null"`
	Players    string `gorm:"type:jsonb;not null"`
	WinnerName string `gorm:"not null"`
	Turns      int    `gorm:"default:0"`
	Duration   int    `gorm:"default:0"`
	CreatedAt  time.Time
}

type playerStatsModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
	Losses     int    `gorm:"default:0"`
	UpdatedAt  time.Time
}

// SaveMatchRecord inserts the record and bumps each participant's aggregate
// stats in one transaction.
func (p *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		row := matchRecordModel{
			RoomCode:   record.RoomCode,
			Players:    string(playersJSON),
			WinnerName: record.WinnerName,
			Turns:      record.Turns,
			Duration:   record.Duration,
			CreatedAt:  record.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for _, mp := range record.Players {
			var stats playerStatsModel
			err := tx.Where("name = ?", mp.Name).First(&stats).Error
			if err != nil {
				if err != gorm.ErrRecordNotFound {
					return err
				}
				stats = playerStatsModel{Name: mp.Name}
			}

			stats.TotalGames++
			if mp.Outcome == "win" {
				stats.Wins++
			} else {
				stats.Losses++
			}

			if err := tx.Save(&stats).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (p *GormPostgreSQL) RecentMatches(limit int) ([]models.MatchRecord, error) {
	var rows []matchRecordModel
	if err := p.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (p *GormPostgreSQL) MatchesForRoom(roomCode string) ([]models.MatchRecord, error) {
	var rows []matchRecordModel
	if err := p.db.Where("room_code = ?", roomCode).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (p *GormPostgreSQL) PlayerStats(name string) (*models.PlayerStats, error) {
	var stats playerStatsModel
	if err := p.db.Where("name = ?", name).First(&stats).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.PlayerStats{
		Name:       stats.Name,
		TotalGames: stats.TotalGames,
		Wins:       stats.Wins,
		Losses:     stats.Losses,
	}, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRows(rows []matchRecordModel) ([]models.MatchRecord, error) {
	records := make([]models.MatchRecord, 0, len(rows))
	for _, row := range rows {
		var players []models.MatchPlayer
		if err := json.Unmarshal([]byte(row.Players), &players); err != nil {
			return nil, err
		}
		records = append(records, models.MatchRecord{
			RoomCode:   row.RoomCode,
			Players:    players,
			WinnerName: row.WinnerName,
			Turns:      row.Turns,
			Duration:   row.Duration,
			CreatedAt:  row.CreatedAt,
		})
	}
	return records, nil
}
