// Package journal persists optimization job lifecycle records in BadgerDB.
//
// The journal is optional. A nil *Journal is a valid no-op: every method is
// nil-safe, so callers wire it unconditionally and only pay when a path is
// configured. Its purpose is crash forensics: jobs that were accepted but
// never completed or failed show up as orphans on the next start.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/imgforge/internal/logger"
)

// State is the lifecycle state of a journaled job.
type State string

const (
	StateAccepted  State = "accepted"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Record is one journaled optimization job.
type Record struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	NewFilePath string    `json:"newFilePath"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a job id has no journal record.
var ErrNotFound = fmt.Errorf("journal: record not found")

const keyPrefix = "job:"

// Journal is a BadgerDB-backed job journal.
type Journal struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) a journal at path.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open journal at %s: %w", path, err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close flushes and closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func keyJob(id string) []byte {
	return []byte(keyPrefix + id)
}

// RecordAccepted journals a freshly accepted job.
func (j *Journal) RecordAccepted(ctx context.Context, id, newFilePath string) error {
	if j == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := j.now()
	rec := Record{
		ID:          id,
		State:       StateAccepted,
		NewFilePath: newFilePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return j.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyJob(id), data)
	})
}

// RecordCompleted marks a job completed.
func (j *Journal) RecordCompleted(ctx context.Context, id string) error {
	return j.transition(ctx, id, StateCompleted, "")
}

// RecordFailed marks a job failed with its cause.
func (j *Journal) RecordFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.transition(ctx, id, StateFailed, msg)
}

func (j *Journal) transition(ctx context.Context, id string, state State, errMsg string) error {
	if j == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyJob(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec Record
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
		if err != nil {
			return err
		}

		rec.State = state
		rec.Error = errMsg
		rec.UpdatedAt = j.now()

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(keyJob(id), data)
	})
}

// Get returns the record for a job id.
func (j *Journal) Get(ctx context.Context, id string) (*Record, error) {
	if j == nil {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyJob(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var r Record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a job record.
func (j *Journal) Delete(ctx context.Context, id string) error {
	if j == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyJob(id))
	})
}

// Orphans returns all records still in the accepted state. These are jobs
// that never reached a terminal state, typically because the process died
// mid-optimization.
func (j *Journal) Orphans(ctx context.Context) ([]Record, error) {
	if j == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var orphans []Record
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				if rec.State == StateAccepted {
					orphans = append(orphans, rec)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

// ReportOrphans logs any orphaned jobs found at startup and returns their
// count.
func (j *Journal) ReportOrphans(ctx context.Context) (int, error) {
	orphans, err := j.Orphans(ctx)
	if err != nil {
		return 0, err
	}

	for _, rec := range orphans {
		logger.Warn("orphaned optimization found in journal",
			logger.KeyOptimizationID, rec.ID,
			logger.KeyNewFilePath, rec.NewFilePath,
			"accepted_at", rec.CreatedAt.Format(time.RFC3339))
	}

	return len(orphans), nil
}
