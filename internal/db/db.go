package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"production-dashboard-backend/config"
	"production-dashboard-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Machine{},
		&model.ERPNextMetadata{},
		&model.ProductionLog{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableTimescale {
		log.Println("TimescaleDB is enabled, applying TimescaleDB-specific DDL...")
		if err := applyTimescaleDDL(db); err != nil {
			log.Printf("Warning: failed to apply some TimescaleDB DDL: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// applyTimescaleDDL turns the append-only production log into a
// hypertable so the audit trail stays queryable as it grows.
func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",

		"SELECT create_hypertable('production_logs', 'timestamp', if_not_exists => TRUE);",

		"CREATE INDEX IF NOT EXISTS idx_production_logs_machine_id_timestamp " +
			"ON production_logs (machine_id, timestamp DESC);",

		"CREATE INDEX IF NOT EXISTS idx_production_logs_work_order_timestamp " +
			"ON production_logs (work_order, timestamp DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
