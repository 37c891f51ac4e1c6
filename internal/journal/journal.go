// Package journal describes the append-only record of lookup outcomes.
package journal

import (
	"context"
	"time"
)

// Entry is one served lookup.
type Entry struct {
	ID             int64     `db:"id"`
	ZipCode        string    `db:"zip_code"`
	Outcome        string    `db:"outcome"`
	FromCache      bool      `db:"from_cache"`
	ProviderStatus int       `db:"provider_status"`
	At             time.Time `db:"at"`
}

func (Entry) TableName() string {
	return "lookups"
}

// Recorder persists lookup entries. A failing Recorder must never fail a lookup.
// Store implementations block on I/O; AsyncRecorder puts them behind a queue.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is a Recorder that can also aggregate what it holds.
type Store interface {
	Recorder
	Summary(ctx context.Context, since time.Time) (map[string]int, error)
	Close() error
}
