package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdleCutoff(t *testing.T) {
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC), idleCutoff(now, 7*24*time.Hour))
}

func TestJanitorSweep(t *testing.T) {
	store := newMemSideChats()
	store.discarded = 4
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

	j := NewSideChatJanitor(NewSideChatService(store, nil, nil), 24*time.Hour)
	j.now = func() time.Time { return now }

	require.Equal(t, int64(4), j.sweep(context.Background()))
	require.Equal(t, now.Add(-24*time.Hour), store.cutoff)
}

func TestJanitorStopIsIdempotent(t *testing.T) {
	j := NewSideChatJanitor(nil, time.Hour)
	j.Start()
	j.Stop()
	j.Stop()
}
