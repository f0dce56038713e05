package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestPostgresConfigDSN(t *testing.T) {
	cfg := PostgresConfig{
		User: "courier", Password: "secret", DBName: "couriers",
		Host: "db", Port: "5432", SSLMode: "disable", TimeZone: "Asia/Kolkata",
	}
	assert.Equal(t,
		"host=db user=courier password=secret dbname=couriers port=5432 sslmode=disable TimeZone=Asia/Kolkata",
		cfg.DSN())
}

func TestConnectPostgres_GivesUpAfterRetries(t *testing.T) {
	origOpen, origSleep := openDB, sleep
	t.Cleanup(func() { openDB, sleep = origOpen, origSleep })

	attempts := 0
	var waited time.Duration
	openDB = func(string) (*gorm.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	}
	sleep = func(d time.Duration) { waited += d }

	db, err := ConnectPostgres(PostgresConfig{Host: "db"}, zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, connectAttempts, attempts)
	// 2s, 4s, ... 18s between ten attempts
	assert.Equal(t, 90*time.Second, waited)
}

func TestCloseWithoutConnection(t *testing.T) {
	DB = nil
	assert.NoError(t, Close())
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(t.Context(), "not-a-url://")
	assert.Error(t, err)
}
