package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/core"
)

func TestMemoryStore_Dismissals(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	dismissed, err := s.IsDismissed(ctx, "u1", "welcome-new-user")
	require.NoError(t, err)
	assert.False(t, dismissed)

	require.NoError(t, s.MarkDismissed(ctx, "u1", "welcome-new-user"))
	require.NoError(t, s.MarkDismissed(ctx, "u1", "welcome-new-user")) // idempotent

	dismissed, err = s.IsDismissed(ctx, "u1", "welcome-new-user")
	require.NoError(t, err)
	assert.True(t, dismissed)

	// Other users and other ids are unaffected.
	dismissed, err = s.IsDismissed(ctx, "u2", "welcome-new-user")
	require.NoError(t, err)
	assert.False(t, dismissed)

	dismissed, err = s.IsDismissed(ctx, "u1", "first-scam")
	require.NoError(t, err)
	assert.False(t, dismissed)
}

func TestMemoryStore_SeenScamTypes(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	seen, err := s.HasSeenScamType(ctx, "u1", "phishing")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkScamTypeSeen(ctx, "u1", "phishing"))

	seen, err = s.HasSeenScamType(ctx, "u1", "phishing")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.HasSeenScamType(ctx, "u1", "fake-shop")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.HasSeenScamType(ctx, "u2", "phishing")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStore_RiskLevelRoundTrip(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	level, err := s.LastRiskLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.RiskLevel(""), level)

	require.NoError(t, s.SetLastRiskLevel(ctx, "u1", core.RiskHigh))

	level, err = s.LastRiskLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, level)

	require.NoError(t, s.SetLastRiskLevel(ctx, "u1", core.RiskLow))

	level, err = s.LastRiskLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.RiskLow, level)
}
