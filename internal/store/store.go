package store

import (
	"context"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// Store exposes the durable persistence operations the scheduler relies on.
// Implementations live under internal/store/<driver>/ (memstore, sqlite,
// postgres). Each meeting mode maps to its own partition; partitions are
// independent keyspaces within one store.
type Store interface {
	Participants() Participants
	Rosters() Rosters

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error
	Close() error
}

// Participants is the per-identity record contract. Emails are stored
// lower-cased; callers normalize before use.
type Participants interface {
	Get(ctx context.Context, partition, email string) (*model.Participant, error)

	// EnsurePresent creates a record with weight 0 when absent and is a
	// no-op otherwise.
	EnsurePresent(ctx context.Context, partition, email string) error

	// SetDisplayName upserts the display name without touching the weight.
	SetDisplayName(ctx context.Context, partition, email, displayName string) error

	// IncrementWeight atomically adds 1 to the stored weight, creating the
	// record at 0 first when absent. This must be a single server-side
	// operation, not a read-modify-write.
	IncrementWeight(ctx context.Context, partition, email string) error

	// Weights returns the stored weight for each requested email in one
	// query. Emails without a record are absent from the result.
	Weights(ctx context.Context, partition string, emails []string) (map[string]int64, error)

	// List scans all participant records in a partition.
	List(ctx context.Context, partition string) ([]*model.Participant, error)

	Delete(ctx context.Context, partition, email string) error
}

// Rosters stores the ordered membership list per partition, separate from
// any participant record so no real identity can collide with it.
type Rosters interface {
	// Get returns the current roster. A partition with no roster yet
	// returns model.ErrNotFound.
	Get(ctx context.Context, partition string) ([]string, error)

	// Put replaces the roster wholesale.
	Put(ctx context.Context, partition string, emails []string) error
}
