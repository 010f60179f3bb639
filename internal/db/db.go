// Package db opens the database, applies migrations and seeds reference data.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-stock/internal/config"
	"github.com/diewo77/go-stock/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Models lists every table managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&models.Category{},
		&models.Product{},
		&models.StockAccount{},
		&models.StockMovement{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
		&models.Admin{},
		&models.Notification{},
		&models.AuditLog{},
	}
}

// Open connects to the configured database, retrying while postgres starts.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		log.Info("connecting to database", zap.String("driver", "sqlite"), zap.String("path", cfg.Path))
		dialector = sqlite.Open(cfg.Path + "?_busy_timeout=5000&_foreign_keys=on")
	case "postgres", "":
		dsn := NormalizeDSN(cfg.DSN())
		log.Info("connecting to database", zap.String("driver", "postgres"), zap.String("dsn", MaskDSN(dsn)))
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var db *gorm.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps transactions serialised.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return db, nil
}

// Migrate creates or updates every table with gorm AutoMigrate.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, table := range []string{"products", "stock_accounts", "stock_movements", "orders"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations executes the SQL migrations in dir against a postgres URL DSN.
func RunSQLMigrations(dir, dsn string) error {
	m, err := migrate.New("file://"+dir, ToURLDSN(dsn))
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
