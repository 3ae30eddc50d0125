package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/faers-signal-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests
	return logger
}

func TestNewConnectionUnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	config := domain.DatabaseConfig{
		Host:            "127.0.0.1",
		Port:            1, // nothing listens here
		Database:        "faers_signal_test",
		Username:        "postgres",
		Password:        "postgres",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	db, err := NewConnection(ctx, config, testLogger())
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestNewConnectionInvalidConfig(t *testing.T) {
	ctx := context.Background()

	config := domain.DatabaseConfig{
		Host:     "host with spaces and 'quotes",
		Port:     -42,
		Database: "db",
		Username: "u",
		SSLMode:  "not-a-mode",
	}

	db, err := NewConnection(ctx, config, testLogger())
	assert.Error(t, err)
	assert.Nil(t, db)
}
