package storage

import (
	"context"
	"errors"

	"github.com/src-lua/apogee/internal/calendar"
)

// ErrConflict is returned by versioned writes when the stored row moved on
// since it was read. Callers reload and retry.
var ErrConflict = errors.New("storage: row changed concurrently")

// Store is the persistence collaborator of the engine. Getters return
// (nil, nil) when the row does not exist.
//
// Instance and ledger writes are versioned: a row that already exists is only
// replaced when its stored Version is exactly one below the written one, and
// a missing row is inserted. Anything else is ErrConflict. This keeps several
// processes sharing one database from overwriting each other.
type Store interface {
	Templates() TemplateStore
	Instances() InstanceStore
	Ledgers() LedgerStore
	Streaks() StreakStore
	Close() error
}

type TemplateStore interface {
	Get(ctx context.Context, userID, id string) (*Template, error)
	List(ctx context.Context, userID string) ([]Template, error)
	Put(ctx context.Context, t Template) error
	Delete(ctx context.Context, userID, id string) error
}

type InstanceStore interface {
	Get(ctx context.Context, userID string, key InstanceKey) (*Instance, error)
	// ListByDay returns the day's instances ordered by name, then template id.
	ListByDay(ctx context.Context, userID string, day calendar.Day) ([]Instance, error)
	ListByTemplate(ctx context.Context, userID, templateID string) ([]Instance, error)
	// ListAll returns every instance ordered by day, then template id.
	ListAll(ctx context.Context, userID string) ([]Instance, error)
	// Days returns the sorted distinct days that have at least one instance.
	Days(ctx context.Context, userID string) ([]calendar.Day, error)
	// Put is a versioned write; see Store.
	Put(ctx context.Context, in Instance) error
	// PutBatch applies Put's version rule to every row in one transaction.
	// Rows that lost a race are skipped; the written ones are returned.
	PutBatch(ctx context.Context, in []Instance) ([]Instance, error)
	// DeletePending removes the instance only while it is still pending and
	// reports whether it did.
	DeletePending(ctx context.Context, userID string, key InstanceKey) (bool, error)
	// DeletePendingFrom removes the template's pending instances on or after
	// from and reports how many were removed.
	DeletePendingFrom(ctx context.Context, userID, templateID string, from calendar.Day) (int, error)
}

type LedgerStore interface {
	Get(ctx context.Context, userID string) (*LedgerState, error)
	// Put is a versioned write; see Store.
	Put(ctx context.Context, s LedgerState) error
}

// ChangeWatcher is implemented by stores that can tell whether another
// process committed changes since the last call. The value changes when
// something else wrote; writes made through this store leave it alone.
type ChangeWatcher interface {
	DataVersion(ctx context.Context) (int64, error)
}

type StreakStore interface {
	Get(ctx context.Context, userID, templateID string) (*StreakRecord, error)
	List(ctx context.Context, userID string) ([]StreakRecord, error)
	Put(ctx context.Context, r StreakRecord) error
	Delete(ctx context.Context, userID, templateID string) error
}
