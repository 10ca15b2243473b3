package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/config"
)

const sqlitePrefix = "sqlite://"

// New opens the configured database, applies pool settings and, when enabled,
// migrates the schema. A DSN starting with sqlite:// selects the embedded
// sqlite backend; anything else is handed to postgres.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: NewLogger(log, gormLogLevel(cfg.Environment)),
	}

	var (
		database *gorm.DB
		err      error
	)
	if strings.HasPrefix(cfg.DB.DSN, sqlitePrefix) {
		database, err = OpenSQLite(strings.TrimPrefix(cfg.DB.DSN, sqlitePrefix), gormCfg)
	} else {
		database, err = gorm.Open(postgres.Open(cfg.DB.DSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
		}
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if cfg.DB.AutoMigrate {
		if err := Migrate(database); err != nil {
			return nil, err
		}
		log.Info().Str("dialect", database.Dialector.Name()).Msg("database schema migrated")
	}
	return database, nil
}

// OpenSQLite opens an sqlite database with a single connection so that
// transactions are serialized instead of failing with "database is locked".
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: NewLogger(zerolog.Nop(), gormlogger.Silent)}
	}
	database, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return database, nil
}

func gormLogLevel(env string) gormlogger.LogLevel {
	if env == "development" {
		return gormlogger.Warn
	}
	return gormlogger.Error
}
