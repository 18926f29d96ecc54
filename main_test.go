package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transcribot/transcribot/internal/config"
)

func TestOpenDatabase_InMemoryFallback(t *testing.T) {
	db, err := openDatabase(&config.Config{})
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))

	user, err := db.GetOrCreateUser(context.Background(), 1, "alice", "en")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestOpenDatabase_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")

	db, err := openDatabase(&config.Config{SQLitePath: path})
	require.NoError(t, err)
	_, err = db.GetOrCreateUser(context.Background(), 2, "bob", "ru")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := openDatabase(&config.Config{SQLitePath: path})
	require.NoError(t, err)
	defer reopened.Close()

	user, err := reopened.GetUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "ru", user.InterfaceLanguage)
}

func TestNewPayments_DisabledWithoutStripeConfig(t *testing.T) {
	assert.Nil(t, newPayments(&config.Config{}))
	assert.Nil(t, newPayments(&config.Config{StripeSecretKey: "sk_test"}))
	assert.Nil(t, newPayments(&config.Config{StripeSecretKey: "sk_test", StripeSubscriptionPrice: "price_1"}))
}
