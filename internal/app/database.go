package app

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/medicore/hms/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Name, workdir))
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())
		dialector = postgres.Open(dsn)
	default:
		zap.S().Fatalf("unsupported database type %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		zap.S().Fatalf("open database error: %s", err.Error())
	}
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Fatalf("database pool error: %s", err.Error())
	}
	if cfg.Type == "sqlite" {
		// sqlite serializes writers, a single connection avoids lock errors
		sqlDB.SetMaxOpenConns(1)
		return db
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db
}

// sqliteDSN resolves a plain file name against <workdir>/data, while
// file: URIs (in-memory databases) are used as given.
func sqliteDSN(name, workdir string) string {
	if name == "" {
		name = "hms.db"
	}
	if strings.HasPrefix(name, "file:") || name == ":memory:" {
		return name
	}
	if !strings.HasPrefix(name, "/") {
		name = path.Join(workdir, "data", name)
	}
	return name + "?_busy_timeout=5000&_journal_mode=WAL"
}
