package alert

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateHistoryRejectsDuplicateFingerprint(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	deviceID := uuid.New()
	ruleID := uuid.New()

	h1 := &History{RuleID: &ruleID, DeviceID: deviceID, Severity: SeverityCritical, TriggeredAt: time.Now().UTC()}
	require.NoError(t, s.CreateHistory(ctx, h1))

	h2 := &History{RuleID: &ruleID, DeviceID: deviceID, Severity: SeverityCritical, TriggeredAt: time.Now().UTC()}
	err := s.CreateHistory(ctx, h2)
	assert.Error(t, err, "a second unresolved alert for the same fingerprint must be rejected")
}

func TestMemoryStore_ResolveFreesTheFingerprintSlot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	deviceID := uuid.New()
	ruleID := uuid.New()

	h1 := &History{RuleID: &ruleID, DeviceID: deviceID, Severity: SeverityCritical, TriggeredAt: time.Now().UTC()}
	require.NoError(t, s.CreateHistory(ctx, h1))
	require.NoError(t, s.ResolveHistory(ctx, h1.ID, time.Now().UTC()))

	h2 := &History{RuleID: &ruleID, DeviceID: deviceID, Severity: SeverityCritical, TriggeredAt: time.Now().UTC()}
	assert.NoError(t, s.CreateHistory(ctx, h2), "resolving the prior alert must free its fingerprint slot")
}

func TestMemoryStore_OpenHistoryForReturnsNilWhenAbsent(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.OpenHistoryFor(context.Background(), Fingerprint{DeviceID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_AcknowledgeSetsByAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	h := &History{DeviceID: uuid.New(), Severity: SeverityMedium, TriggeredAt: time.Now().UTC()}
	require.NoError(t, s.CreateHistory(ctx, h))

	at := time.Now().UTC()
	require.NoError(t, s.AcknowledgeHistory(ctx, h.ID, "noc-oncall", at))

	list, err := s.ListOpenHistory(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "noc-oncall", list[0].AcknowledgedBy)
	assert.NotNil(t, list[0].AcknowledgedAt)
}

func TestMemoryStore_DeleteResolvedBeforeCutoff(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := &History{DeviceID: uuid.New(), Severity: SeverityInfo, TriggeredAt: time.Now().UTC().Add(-400 * 24 * time.Hour)}
	require.NoError(t, s.CreateHistory(ctx, old))
	resolvedAt := time.Now().UTC().Add(-370 * 24 * time.Hour)
	require.NoError(t, s.ResolveHistory(ctx, old.ID, resolvedAt))

	recent := &History{DeviceID: uuid.New(), Severity: SeverityInfo, TriggeredAt: time.Now().UTC()}
	require.NoError(t, s.CreateHistory(ctx, recent))
	require.NoError(t, s.ResolveHistory(ctx, recent.ID, time.Now().UTC()))

	n, err := s.DeleteResolvedBefore(ctx, time.Now().UTC().Add(-365*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
