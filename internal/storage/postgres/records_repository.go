package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/domain/records"
	"github.com/Togather-Foundation/datastudy/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ records.Repository = (*RecordRepository)(nil)

// RecordRepository stores records in public.data_study.
//
// Each mutation runs in its own transaction unless the repository was obtained
// from Repository.WithTx, in which case the caller's transaction is used.
type RecordRepository struct {
	db *Repository
}

type recordRow struct {
	ID        int64
	Text      *string
	CreatedAt pgtype.Timestamptz
}

func (row recordRow) toRecord() records.Record {
	record := records.Record{
		ID:   row.ID,
		Text: derefString(row.Text),
	}
	if row.CreatedAt.Valid {
		record.CreatedAt = row.CreatedAt.Time
	}
	return record
}

// List returns every record ordered by ascending id.
func (r *RecordRepository) List(ctx context.Context) (items []records.Record, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_records", start, err) }(time.Now())

	rows, err := r.queryer().Query(ctx, `
SELECT id, text, time
  FROM public.data_study
 ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items = make([]records.Record, 0)
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(&row.ID, &row.Text, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}
		items = append(items, row.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

func (r *RecordRepository) Get(ctx context.Context, id int64) (_ *records.Record, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_record", start, notFoundIsNil(err)) }(time.Now())

	var row recordRow
	err = r.queryer().QueryRow(ctx, `
SELECT id, text, time
  FROM public.data_study
 WHERE id = $1
`, id).Scan(&row.ID, &row.Text, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	record := row.toRecord()
	return &record, nil
}

// Insert stores text with a store-assigned id and creation time.
func (r *RecordRepository) Insert(ctx context.Context, text string) (_ *records.Record, err error) {
	defer func(start time.Time) { metrics.RecordQuery("insert_record", start, err) }(time.Now())

	var row recordRow
	err = r.inTx(ctx, func(q queryer) error {
		return q.QueryRow(ctx, `
INSERT INTO public.data_study (text, time)
VALUES ($1, CURRENT_TIMESTAMP)
RETURNING id, text, time
`, text).Scan(&row.ID, &row.Text, &row.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	record := row.toRecord()
	return &record, nil
}

// Update changes only the text; the returned record carries the original creation time.
func (r *RecordRepository) Update(ctx context.Context, id int64, text string) (_ *records.Record, err error) {
	defer func(start time.Time) { metrics.RecordQuery("update_record", start, notFoundIsNil(err)) }(time.Now())

	var row recordRow
	err = r.inTx(ctx, func(q queryer) error {
		return q.QueryRow(ctx, `
UPDATE public.data_study
   SET text = $1
 WHERE id = $2
RETURNING id, text, time
`, text, id).Scan(&row.ID, &row.Text, &row.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrNotFound
		}
		return nil, fmt.Errorf("update record: %w", err)
	}
	record := row.toRecord()
	return &record, nil
}

func (r *RecordRepository) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_record", start, notFoundIsNil(err)) }(time.Now())

	var tag pgconn.CommandTag
	err = r.inTx(ctx, func(q queryer) error {
		var execErr error
		tag, execErr = q.Exec(ctx, `DELETE FROM public.data_study WHERE id = $1`, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return records.ErrNotFound
	}
	return nil
}

// DeleteAll truncates the table and restarts the id sequence at 1.
//
// The ACCESS EXCLUSIVE lock is taken first and held until commit, so no insert can
// obtain an id from the old sequence after the truncate or observe the table between
// the truncate and the restart.
func (r *RecordRepository) DeleteAll(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_all_records", start, err) }(time.Now())

	err = r.inTx(ctx, func(q queryer) error {
		if _, err := q.Exec(ctx, `LOCK TABLE public.data_study IN ACCESS EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock table: %w", err)
		}
		if _, err := q.Exec(ctx, `TRUNCATE TABLE public.data_study RESTART IDENTITY CASCADE`); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete all records: %w", err)
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *RecordRepository) queryer() queryer {
	return r.db.queryer()
}

func (r *RecordRepository) inTx(ctx context.Context, fn func(queryer) error) error {
	return r.db.withTx(ctx, func(_ context.Context, tx *Repository) error {
		return fn(tx.queryer())
	})
}

func notFoundIsNil(err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	return err
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
