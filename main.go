package main

import (
	"github.com/wfunc/cursedcards/config"
	"github.com/wfunc/cursedcards/logger"
	"github.com/wfunc/cursedcards/persistence"
	"github.com/wfunc/cursedcards/server"
)

func main() {
	logger.Init()
	logger.Log.Info("Starting Cursed Cards server...")

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	var db persistence.Database
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "gorm":
			db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			db, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Infof("Match persistence enabled (driver: %s)", cfg.Database.Driver)
	} else {
		logger.Log.Info("Match persistence disabled")
	}

	gameServer := server.NewGameServer(cfg, db)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Server error: %v", err)
	}
}
