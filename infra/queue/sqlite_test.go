package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetsync/core/model"
	corequeue "github.com/kilianp07/fleetsync/core/queue"
)

func openQueue(t *testing.T, path string, maxRetries int) *SQLiteQueue {
	t.Helper()
	q, err := NewSQLiteQueue(path, maxRetries)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func enqueue(t *testing.T, q *SQLiteQueue, vehicleID string, kind model.OperationKind, payload any) int64 {
	t.Helper()
	op, err := model.NewOperation(kind, vehicleID, payload)
	require.NoError(t, err)
	id, err := q.Enqueue(op)
	require.NoError(t, err)
	return id
}

func TestEnqueuePeek_FIFO(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)

	id1 := enqueue(t, q, "v1", model.KindStartTrip, model.StartTripPayload{OdometerStart: 100})
	id2 := enqueue(t, q, "v2", model.KindFuelLoad, model.FuelLoadPayload{Odometer: 50, Liters: 10})
	id3 := enqueue(t, q, "v1", model.KindEndTrip, model.EndTripPayload{OdometerEnd: 150})

	batch, err := q.PeekBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, []int64{id1, id2, id3}, []int64{batch[0].LocalID, batch[1].LocalID, batch[2].LocalID})

	first := batch[0]
	assert.Equal(t, "v1", first.Op.VehicleID)
	assert.Equal(t, model.KindStartTrip, first.Op.Kind)
	assert.NotEmpty(t, first.Op.IdempotencyKey, "enqueue assigns the idempotency key")
	assert.Equal(t, first.LocalID, first.Op.ClientTime, "local id doubles as logical capture time")
	assert.Equal(t, corequeue.StatusPending, first.Status)

	p, err := first.Op.StartTrip()
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.OdometerStart)
}

func TestPeekBatch_Limit(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	for i := 0; i < 5; i++ {
		enqueue(t, q, "v1", model.KindFuelLoad, model.FuelLoadPayload{Odometer: float64(i), Liters: 1})
	}
	batch, err := q.PeekBatch(3)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestMarkInFlight_GuardsStatus(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	id := enqueue(t, q, "v1", model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1, Liters: 1})

	require.NoError(t, q.MarkInFlight(id))
	assert.Error(t, q.MarkInFlight(id), "a second transition must not succeed")

	batch, err := q.PeekBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch, "in_flight entries are not peeked")
}

func TestMarkApplied(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	id := enqueue(t, q, "v1", model.KindStartTrip, model.StartTripPayload{OdometerStart: 100})
	require.NoError(t, q.MarkInFlight(id))
	require.NoError(t, q.MarkApplied(id, "trip-42"))

	counts, err := q.Counts()
	require.NoError(t, err)
	assert.Equal(t, corequeue.Counts{Applied: 1}, counts)
}

func TestMarkRejected_ConflictFlag(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	idReject := enqueue(t, q, "v1", model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1, Liters: -1})
	idConflict := enqueue(t, q, "v1", model.KindStartTrip, model.StartTripPayload{OdometerStart: 10})

	require.NoError(t, q.MarkRejected(idReject, "liters must be positive", false))
	require.NoError(t, q.MarkRejected(idConflict, "vehicle not available", true))

	terminal, err := q.Terminal()
	require.NoError(t, err)
	require.Len(t, terminal, 2)
	assert.False(t, terminal[0].Conflict)
	assert.Equal(t, "liters must be positive", terminal[0].LastError)
	assert.True(t, terminal[1].Conflict)
}

func TestMarkFailed_RetrySchedule(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 3)
	id := enqueue(t, q, "v1", model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1, Liters: 1})

	terminal, err := q.MarkFailed(id, "store unreachable", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, terminal)

	batch, err := q.PeekBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch, "not eligible until next_attempt elapses")

	terminal, err = q.MarkFailed(id, "store unreachable", time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, terminal)

	batch, err = q.PeekBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].AttemptCount)
	assert.Equal(t, "store unreachable", batch[0].LastError)

	terminal, err = q.MarkFailed(id, "store unreachable", time.Now())
	require.NoError(t, err)
	assert.True(t, terminal, "attempt ceiling reached")

	counts, err := q.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failed)
}

func TestRecoverInFlight(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	id1 := enqueue(t, q, "v1", model.KindStartTrip, model.StartTripPayload{OdometerStart: 100})
	id2 := enqueue(t, q, "v2", model.KindFuelLoad, model.FuelLoadPayload{Odometer: 1, Liters: 1})
	require.NoError(t, q.MarkInFlight(id1))
	require.NoError(t, q.MarkInFlight(id2))
	require.NoError(t, q.MarkApplied(id2, "r1"))

	n, err := q.RecoverInFlight()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batch, err := q.PeekBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, id1, batch[0].LocalID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := NewSQLiteQueue(path, 5)
	require.NoError(t, err)
	op, err := model.NewOperation(model.KindEndTrip, "v1", model.EndTripPayload{OdometerEnd: 200})
	require.NoError(t, err)
	id, err := q.Enqueue(op)
	require.NoError(t, err)
	batch, err := q.PeekBatch(1)
	require.NoError(t, err)
	key := batch[0].Op.IdempotencyKey
	require.NoError(t, q.Close())

	q2 := openQueue(t, path, 5)
	batch, err = q2.PeekBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, id, batch[0].LocalID)
	assert.Equal(t, key, batch[0].Op.IdempotencyKey, "the key survives restarts, so retries stay idempotent")
}

func TestEnqueue_KeepsCallerKey(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	op, err := model.NewOperation(model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 1, Liters: 1})
	require.NoError(t, err)
	op.IdempotencyKey = "caller-key"
	_, err = q.Enqueue(op)
	require.NoError(t, err)

	batch, err := q.PeekBatch(1)
	require.NoError(t, err)
	assert.Equal(t, "caller-key", batch[0].Op.IdempotencyKey)
}

func TestEnqueue_DuplicateKeyRejected(t *testing.T) {
	q := openQueue(t, filepath.Join(t.TempDir(), "queue.db"), 5)
	op, err := model.NewOperation(model.KindFuelLoad, "v1", model.FuelLoadPayload{Odometer: 1, Liters: 1})
	require.NoError(t, err)
	op.IdempotencyKey = "dup"
	_, err = q.Enqueue(op)
	require.NoError(t, err)
	_, err = q.Enqueue(op)
	assert.Error(t, err, "idempotency keys are unique per queue")
}
