package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type reconcilerFunc func(ctx context.Context) (int, error)

func (f reconcilerFunc) RecalculateAll(ctx context.Context) (int, error) {
	return f(ctx)
}

func TestReconcileJobLogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	calls := 0
	ReconcileJob(reconcilerFunc(func(ctx context.Context) (int, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return 2, nil
	}), log)()

	assert.Equal(t, 1, calls)
	entries := logs.FilterMessage("balance reconciliation finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["changed"])

	ReconcileJob(reconcilerFunc(func(context.Context) (int, error) {
		return 0, errors.New("store unavailable")
	}), log)()
	assert.Equal(t, 1, logs.FilterMessage("balance reconciliation failed").Len())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	_, err := Start("every now and then", reconcilerFunc(func(context.Context) (int, error) { return 0, nil }), zap.NewNop())
	assert.Error(t, err)
}

func TestStartSchedules(t *testing.T) {
	c, err := Start("@every 1h", reconcilerFunc(func(context.Context) (int, error) { return 0, nil }), zap.NewNop())
	require.NoError(t, err)
	defer c.Stop()

	assert.Len(t, c.Entries(), 1)
}
