package db

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const connsPerCPU = 10
const maxIdleTime = 10 * time.Minute

// MakeDB opens the Persistence Store's underlying connection and migrates
// the schema for User, Device, DeviceOwnership, PairingCode, and
// WatchSession (spec.md §3).
func MakeDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.Database)
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Metrics.OTLPEndpoint != "" {
		if err := database.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to trace database: %w", err)
		}
	}

	if err := database.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.DeviceOwnership{},
		&models.PairingCode{},
		&models.WatchSession{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
	sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * connsPerCPU)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)

	return database, nil
}

func dialectorFor(dbCfg config.Database) (gorm.Dialector, error) {
	switch dbCfg.Driver {
	case config.DatabaseDriverSQLite:
		dsn := dbCfg.Database
		if len(dbCfg.ExtraParameters) > 0 {
			dsn = fmt.Sprintf("%s?%s", dsn, strings.Join(dbCfg.ExtraParameters, "&"))
		}
		return sqlite.Open(dsn), nil
	case config.DatabaseDriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			dbCfg.Host, dbCfg.Port, dbCfg.Username, dbCfg.Password, dbCfg.Database)
		return postgres.Open(dsn), nil
	default:
		slog.Error("unsupported database driver", "driver", dbCfg.Driver)
		return nil, fmt.Errorf("unsupported database driver: %s", dbCfg.Driver)
	}
}
