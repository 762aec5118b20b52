package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/aratiri-client/internal/storage"
)

// TestStoreIntegration exercises the key-value table against a live database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_STORE_INTEGRATION") != "true" {
		t.Skip("set RUN_STORE_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	namespace := fmt.Sprintf("test_%d", time.Now().UnixNano())
	store, err := NewStore(ctx, dbURL, namespace)
	require.NoError(t, err)
	defer store.Close()
	defer store.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken)

	_, err = store.Get(ctx, storage.KeyAccessToken)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  "access",
		storage.KeyRefreshToken: "refresh",
	}))
	got, err := store.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", got)

	require.NoError(t, store.SetMany(ctx, map[string]string{storage.KeyAccessToken: "access-2"}))
	got, err = store.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)

	require.NoError(t, store.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken))
	_, err = store.Get(ctx, storage.KeyRefreshToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
