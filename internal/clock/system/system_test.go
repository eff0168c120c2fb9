package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "got %v", got)
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	clk := Fixed(at)
	require.Equal(t, at, clk.Now())
	require.Equal(t, clk.Now(), clk.Now())
}
