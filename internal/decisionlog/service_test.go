package decisionlog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/decisionlog"
	"github.com/gatehouse/gatehouse/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(userID string) *decisionlog.Record {
	return &decisionlog.Record{
		UserID:    userID,
		Profile:   "client",
		Operation: "read",
		Object:    "invoice",
		Allowed:   true,
		Reason:    decisionlog.ReasonGranted,
		CheckedAt: time.Now(),
	}
}

func TestService_RecordAndDrain(t *testing.T) {
	store := memory.New()
	svc := decisionlog.NewService(store.Decisions(), 16)
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		svc.Record(record(fmt.Sprintf("u%d", i)))
	}
	svc.Close()

	assert.Equal(t, 5, store.DecisionCount())
	assert.Zero(t, svc.Dropped())
}

func TestService_AssignsULID(t *testing.T) {
	store := memory.New()
	svc := decisionlog.NewService(store.Decisions(), 16)
	svc.Start(context.Background())

	rec := record("u1")
	require.Empty(t, rec.ID)
	svc.Record(rec)
	svc.Close()

	assert.Len(t, rec.ID, 26)
}

func TestService_DropsUnderPressure(t *testing.T) {
	store := memory.New()
	// Writer never started: the buffer fills and stays full
	svc := decisionlog.NewService(store.Decisions(), 2)

	for i := 0; i < 5; i++ {
		svc.Record(record("u1"))
	}

	assert.Equal(t, int64(3), svc.Dropped())
}

func TestService_CloseBeforeStartIsSafe(t *testing.T) {
	svc := decisionlog.NewService(decisionlog.SlogSink{}, 4)
	svc.Close()
	svc.Record(record("u1"))
}

func TestService_RecordAfterCloseDropsWithoutPanic(t *testing.T) {
	store := memory.New()
	svc := decisionlog.NewService(store.Decisions(), 4)
	svc.Start(context.Background())

	svc.Record(record("u1"))
	svc.Close()

	// A check still in flight during shutdown may record after Close; the
	// record is counted as dropped instead of panicking on a closed channel.
	svc.Record(record("u2"))
	svc.Close()

	assert.Equal(t, 1, store.DecisionCount())
	assert.Equal(t, int64(1), svc.Dropped())
}

func TestService_Prune(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	old := record("u1")
	old.CheckedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Decisions().Write(ctx, old))
	require.NoError(t, store.Decisions().Write(ctx, record("u2")))

	svc := decisionlog.NewService(store.Decisions(), 4)
	pruned, err := svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	assert.Equal(t, 1, store.DecisionCount())
}
