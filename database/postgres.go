package database

import (
	"context"
	"fmt"
	"time"

	"supply-service/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Settings are the connection parameters for the service database.
type Settings struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

// DSN renders s as a libpq keyword/value string. Empty optional fields get
// the local defaults.
func (s Settings) DSN() string {
	host, port, sslMode, tz := s.Host, s.Port, s.SSLMode, s.TimeZone
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if sslMode == "" {
		sslMode = "disable"
	}
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, s.User, s.Password, s.Name, port, sslMode, tz,
	)
}

// OwnedModels are the tables this service writes. users, franchises and
// vendors belong to other services and are only read.
func OwnedModels() []interface{} {
	return []interface{}{&models.Order{}, &models.Discrepancy{}, &models.Notification{}}
}

const connectAttempts = 10

// ConnectPostgres opens the database, retrying with a growing delay, and
// migrates the owned tables.
func ConnectPostgres(ctx context.Context, s Settings, logger *zap.Logger) (*gorm.DB, error) {
	if s.User == "" || s.Password == "" || s.Name == "" {
		return nil, fmt.Errorf("database credentials incomplete")
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(s.DSN()), &gorm.Config{})
		if err == nil {
			// Configure connection pool
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			logger.Info("Connected to PostgreSQL successfully", zap.String("host", s.Host), zap.String("db", s.Name))

			if err := db.WithContext(ctx).AutoMigrate(OwnedModels()...); err != nil {
				return nil, fmt.Errorf("AutoMigrate failed: %w", err)
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 2 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
