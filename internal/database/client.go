// Package database provides the shared Postgres connection and the
// persistent models for projects, scenes, glaciers and processing results.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glacierwatch/glacierwatch/internal/log"
	"go.uber.org/zap"
)

// Client holds the connection to the Postgres database
type Client struct {
	DB     *gorm.DB
	logger *zap.SugaredLogger
}

// NewClient connects to Postgres and returns a client
func NewClient(connectionString string, lg *zap.SugaredLogger) (*Client, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return &Client{DB: db, logger: lg}, nil
}

// CreateConnection creates a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a Postgres connection:", err)
		return nil, err
	}
	log.Info("Postgres connection successful")

	return db, nil
}

// Close releases the underlying sql.DB connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
