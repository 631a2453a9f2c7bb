package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecentNewestFirst(t *testing.T) {
	j := NewMemory(3)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Entry{RunID: string(rune('a' + i)), StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].RunID)
	assert.Equal(t, "c", got[2].RunID)

	got, err = j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e", got[0].RunID)
}

// TestPostgresRoundTrip needs a database; set SP_TEST_POSTGRES_HOST to run it.
func TestPostgresRoundTrip(t *testing.T) {
	host := os.Getenv("SP_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("SP_TEST_POSTGRES_HOST not set")
	}
	cfg := config.PostgresConfig{
		Host:         host,
		Port:         5432,
		User:         "postgres",
		Password:     os.Getenv("SP_TEST_POSTGRES_PASSWORD"),
		Database:     "postgres",
		SSLMode:      "disable",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
	db, err := postgres.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	j, err := NewPostgres(ctx, db)
	require.NoError(t, err)

	e := Entry{
		RunID:        uuid.NewString(),
		Kind:         "full",
		Stage:        "RELEASED",
		ContentTypes: []string{"Dataset", "Software"},
		StartedAt:    time.Now().UTC().Truncate(time.Millisecond).Add(time.Hour),
		Duration:     1500 * time.Millisecond,
		ErrorCount:   2,
		Outcome:      OutcomePartial,
	}
	require.NoError(t, j.Record(ctx, e))

	got, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.RunID, got[0].RunID)
	assert.Equal(t, e.ContentTypes, got[0].ContentTypes)
	assert.Equal(t, e.Duration, got[0].Duration)
	assert.Equal(t, OutcomePartial, got[0].Outcome)
}
