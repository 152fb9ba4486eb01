package storage

import (
	"context"

	"github.com/Togather-Foundation/datastudy/internal/domain/records"
)

// Repository groups data access by domain.
type Repository interface {
	Records() records.Repository

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
