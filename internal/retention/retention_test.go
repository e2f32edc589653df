package retention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/platform/logger"
)

type fakePingStore struct {
	deletedCutoff time.Time
	deleteCount   int64
	err           error
}

func (f *fakePingStore) DeletePingResultsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.deletedCutoff = cutoff
	return f.deleteCount, f.err
}

func TestRunNow_DeletesPingResultsBeforeRetentionHorizon(t *testing.T) {
	pings := &fakePingStore{deleteCount: 5}
	store := alert.NewMemoryStore()
	m := New(Config{PingRetentionDays: 30}, pings, store, logger.NewDefault("retention_test"))

	before := time.Now().UTC().AddDate(0, 0, -30)
	m.RunNow(context.Background())
	after := time.Now().UTC().AddDate(0, 0, -30)

	assert.True(t, !pings.deletedCutoff.Before(before.Add(-time.Second)) && !pings.deletedCutoff.After(after.Add(time.Second)))
}

func TestRunNow_DeletesResolvedAlertsBeforeRetentionHorizon(t *testing.T) {
	store := alert.NewMemoryStore()
	ctx := context.Background()

	resolvedAt := time.Now().UTC().AddDate(-2, 0, 0)
	h := &alert.History{DeviceID: uuid.New(), TriggeredAt: resolvedAt, ResolvedAt: &resolvedAt}
	require.NoError(t, store.CreateHistory(ctx, h))

	m := New(Config{AlertRetentionDays: 365}, nil, store, logger.NewDefault("retention_test"))
	m.RunNow(ctx)

	remaining, err := store.ListHistory(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "resolved history older than the retention horizon must be deleted")
}

func TestConfig_AppliesDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 90, cfg.PingRetentionDays)
	assert.Equal(t, 365, cfg.AlertRetentionDays)
	assert.Equal(t, "0 2 * * *", cfg.Schedule)
}
