// Package queue provides the SQLite-backed implementation of the offline
// operation log.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/fleetsync/core/model"
	corequeue "github.com/kilianp07/fleetsync/core/queue"
)

// SQLiteQueue persists pending operations in a SQLite database. local_id
// is the autoincrement rowid, which doubles as the logical capture time.
type SQLiteQueue struct {
	db         *sql.DB
	maxRetries int
}

// NewSQLiteQueue opens or creates the database and ensures schema.
// maxRetries is the attempt ceiling after which a transient failure
// becomes terminal.
func NewSQLiteQueue(path string, maxRetries int) (*SQLiteQueue, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS pending_ops (
        local_id INTEGER PRIMARY KEY AUTOINCREMENT,
        idempotency_key TEXT NOT NULL UNIQUE,
        kind TEXT NOT NULL,
        vehicle_id TEXT NOT NULL,
        payload BLOB NOT NULL,
        driver TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pending',
        conflict INTEGER NOT NULL DEFAULT 0,
        attempt_count INTEGER NOT NULL DEFAULT 0,
        remote_id TEXT NOT NULL DEFAULT '',
        last_error TEXT NOT NULL DEFAULT '',
        next_attempt INTEGER NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_pending_ops_status ON pending_ops(status, next_attempt);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteQueue{db: db, maxRetries: maxRetries}, nil
}

// Enqueue appends the operation as pending and assigns its idempotency
// key. The insert is local disk I/O only, so capture works offline.
func (q *SQLiteQueue) Enqueue(op model.Operation) (int64, error) {
	if op.IdempotencyKey == "" {
		op.IdempotencyKey = uuid.NewString()
	}
	res, err := q.db.Exec(`INSERT INTO pending_ops
        (idempotency_key, kind, vehicle_id, payload, driver)
        VALUES (?, ?, ?, ?, ?)`,
		op.IdempotencyKey, string(op.Kind), op.VehicleID, []byte(op.Payload), op.Driver)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return res.LastInsertId()
}

// PeekBatch returns up to maxN pending entries whose retry delay has
// elapsed, ordered by local id, which yields FIFO within each vehicle.
func (q *SQLiteQueue) PeekBatch(maxN int) ([]corequeue.PendingOperation, error) {
	rows, err := q.db.Query(`SELECT local_id, idempotency_key, kind, vehicle_id,
        payload, driver, status, conflict, attempt_count, remote_id, last_error, next_attempt
        FROM pending_ops
        WHERE status = 'pending' AND next_attempt <= ?
        ORDER BY local_id LIMIT ?`, time.Now().UnixNano(), maxN)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []corequeue.PendingOperation
	for rows.Next() {
		po, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, po)
	}
	return res, rows.Err()
}

func scanOp(rows *sql.Rows) (corequeue.PendingOperation, error) {
	var (
		po       corequeue.PendingOperation
		kind     string
		status   string
		conflict int
		payload  []byte
		next     int64
	)
	if err := rows.Scan(&po.LocalID, &po.Op.IdempotencyKey, &kind, &po.Op.VehicleID,
		&payload, &po.Op.Driver, &status, &conflict, &po.AttemptCount,
		&po.RemoteID, &po.LastError, &next); err != nil {
		return po, err
	}
	po.Op.Kind = model.OperationKind(kind)
	po.Op.Payload = json.RawMessage(payload)
	po.Op.ClientTime = po.LocalID
	po.Status = corequeue.Status(status)
	po.Conflict = conflict != 0
	if next > 0 {
		po.NextAttempt = time.Unix(0, next)
	}
	return po, nil
}

func (q *SQLiteQueue) MarkInFlight(localID int64) error {
	return q.setStatus(localID, corequeue.StatusInFlight, corequeue.StatusPending)
}

func (q *SQLiteQueue) setStatus(localID int64, to, from corequeue.Status) error {
	res, err := q.db.Exec(`UPDATE pending_ops SET status = ? WHERE local_id = ? AND status = ?`,
		string(to), localID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("op %d: no %s entry to mark %s", localID, from, to)
	}
	return nil
}

func (q *SQLiteQueue) MarkApplied(localID int64, remoteID string) error {
	_, err := q.db.Exec(`UPDATE pending_ops SET status = 'applied', remote_id = ?, last_error = ''
        WHERE local_id = ?`, remoteID, localID)
	return err
}

func (q *SQLiteQueue) MarkRejected(localID int64, reason string, conflict bool) error {
	c := 0
	if conflict {
		c = 1
	}
	_, err := q.db.Exec(`UPDATE pending_ops SET status = 'rejected', conflict = ?, last_error = ?
        WHERE local_id = ?`, c, reason, localID)
	return err
}

// MarkFailed records a transient failure. Below the retry ceiling the
// entry returns to pending with nextAttempt as its earliest retry; at the
// ceiling it becomes terminally failed and must be surfaced.
func (q *SQLiteQueue) MarkFailed(localID int64, reason string, nextAttempt time.Time) (bool, error) {
	var attempts int
	if err := q.db.QueryRow(`SELECT attempt_count FROM pending_ops WHERE local_id = ?`,
		localID).Scan(&attempts); err != nil {
		return false, err
	}
	attempts++
	status := corequeue.StatusPending
	terminal := attempts >= q.maxRetries
	if terminal {
		status = corequeue.StatusFailed
	}
	_, err := q.db.Exec(`UPDATE pending_ops SET status = ?, attempt_count = ?, last_error = ?, next_attempt = ?
        WHERE local_id = ?`, string(status), attempts, reason, nextAttempt.UnixNano(), localID)
	return terminal, err
}

// RecoverInFlight returns entries left in_flight by a crash to pending.
// Safe because replays reuse the original idempotency key.
func (q *SQLiteQueue) RecoverInFlight() (int, error) {
	res, err := q.db.Exec(`UPDATE pending_ops SET status = 'pending' WHERE status = 'in_flight'`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (q *SQLiteQueue) Counts() (corequeue.Counts, error) {
	rows, err := q.db.Query(`SELECT status, COUNT(*) FROM pending_ops GROUP BY status`)
	if err != nil {
		return corequeue.Counts{}, err
	}
	defer func() { _ = rows.Close() }()
	var c corequeue.Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return c, err
		}
		switch corequeue.Status(status) {
		case corequeue.StatusPending:
			c.Pending = n
		case corequeue.StatusInFlight:
			c.InFlight = n
		case corequeue.StatusApplied:
			c.Applied = n
		case corequeue.StatusRejected:
			c.Rejected = n
		case corequeue.StatusFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

// Terminal lists rejected and terminally failed entries.
func (q *SQLiteQueue) Terminal() ([]corequeue.PendingOperation, error) {
	rows, err := q.db.Query(`SELECT local_id, idempotency_key, kind, vehicle_id,
        payload, driver, status, conflict, attempt_count, remote_id, last_error, next_attempt
        FROM pending_ops WHERE status IN ('rejected', 'failed') ORDER BY local_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []corequeue.PendingOperation
	for rows.Next() {
		po, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, po)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (q *SQLiteQueue) Close() error { return q.db.Close() }
