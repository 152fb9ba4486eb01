package records

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Record is a row of the data_study table.
type Record struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

type Repository interface {
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Insert(ctx context.Context, text string) (*Record, error)
	// Update replaces the text and returns the record with its original creation time.
	Update(ctx context.Context, id int64, text string) (*Record, error)
	Delete(ctx context.Context, id int64) error
	// DeleteAll removes every record and restarts the id sequence at 1.
	DeleteAll(ctx context.Context) error
}

// Notifier receives change notifications after a mutation has been committed.
// Implementations must not block and must not report delivery failures to the caller.
type Notifier interface {
	RecordUpserted(ctx context.Context, record Record)
	RecordDeleted(ctx context.Context, id int64)
}
