// repository/notice/repo.go
package notice

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"booklend/model"
)

// Repo persists the time a notice of a given kind was last sent for a
// rental, so sweeps that overlap the same window do not re-notify.
type Repo interface {
	LastSent(ctx context.Context, rentalID int64, kind model.NoticeKind) (time.Time, bool, error)
	MarkSent(ctx context.Context, rentalID int64, kind model.NoticeKind, at time.Time) error
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) LastSent(ctx context.Context, rentalID int64, kind model.NoticeKind) (time.Time, bool, error) {
	const q = `
			SELECT sent_at
			FROM rental_notices
			WHERE rental_id = $1
			AND kind = $2`
	var at time.Time
	err := r.db.QueryRowContext(ctx, q, rentalID, kind).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (r *repo) MarkSent(ctx context.Context, rentalID int64, kind model.NoticeKind, at time.Time) error {
	const q = `
			INSERT INTO rental_notices (rental_id, kind, sent_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (rental_id, kind)
			DO UPDATE SET sent_at = EXCLUDED.sent_at`
	_, err := r.db.ExecContext(ctx, q, rentalID, kind, at)
	return err
}
