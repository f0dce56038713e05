package database

import (
	"fmt"
	"time"

	"courier-service/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the process-wide handle opened by Connect.
var DB *gorm.DB

const (
	connectAttempts = 10
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

type PostgresConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

// courierTables are migrated on startup.
var courierTables = []any{
	&models.RateCard{},
	&models.SellerRateOverride{},
	&models.PartnerConfig{},
	&models.Shipment{},
}

// An AWB is only unique within its courier; unbooked rows carry no AWB.
const shipmentAWBIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_shipments_courier_awb
	ON shipments (courier, awb) WHERE awb <> '' AND deleted_at IS NULL`

var (
	openDB = func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), &gorm.Config{}) }
	sleep  = time.Sleep
)

// ConnectPostgres opens the pool, retrying with a linear backoff while the
// database comes up, then migrates tables.
func ConnectPostgres(cfg PostgresConfig, logger *zap.Logger, tables ...any) (*gorm.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := openDB(cfg.DSN())
		if err == nil {
			if err := configurePool(db); err != nil {
				return nil, err
			}
			logger.Info("Connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.DBName), zap.Int("attempt", attempt))
			if len(tables) > 0 {
				if err := db.AutoMigrate(tables...); err != nil {
					return nil, fmt.Errorf("auto-migrate: %w", err)
				}
			}
			return db, nil
		}

		lastErr = err
		wait := time.Duration(attempt) * 2 * time.Second
		logger.Warn("PostgreSQL not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if attempt < connectAttempts {
			sleep(wait)
		}
	}
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", connectAttempts, lastErr)
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

// Connect opens DB with the courier tables migrated and the per-courier AWB
// index in place.
func Connect(cfg PostgresConfig, logger *zap.Logger) error {
	db, err := ConnectPostgres(cfg, logger, courierTables...)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", zap.Error(err))
		return err
	}
	if err := db.Exec(shipmentAWBIndex).Error; err != nil {
		return fmt.Errorf("create awb index: %w", err)
	}
	DB = db
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql pool: %w", err)
	}
	return sqlDB.Close()
}
