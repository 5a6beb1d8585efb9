package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongo_InvalidURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-uri", time.Second)
	require.Error(t, err)
}

func TestConnectMongoRetry_GivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectMongoRetry(context.Background(), "not-a-uri", time.Second, Retry{Attempts: 3, Backoff: 10 * time.Millisecond})
	require.ErrorContains(t, err, "giving up after 3 attempts")
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConnectMongoRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectMongoRetry(ctx, "not-a-uri", time.Second, Retry{Attempts: 3, Backoff: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}
