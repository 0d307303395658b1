package app

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jeffmoIA/netdesk/config"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

// getDatabase opens the configured database. sqlite is the default for
// single-host deployments; postgres serves shared installs.
func getDatabase(cfg config.DatabaseConfig, workdir string) *gorm.DB {
	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		path := cfg.Path
		if path == "" {
			common.MustMkdir(workdir)
			path = filepath.Join(workdir, "netdesk.db")
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		zap.S().Panicf("database connect failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		maxConn := cfg.MaxConn
		if maxConn <= 0 {
			maxConn = 50
		}
		idleConn := cfg.IdleConn
		if idleConn <= 0 {
			idleConn = 5
		}
		sqlDB.SetMaxOpenConns(maxConn)
		sqlDB.SetMaxIdleConns(idleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db
}
