// repository/rental/repo.go
package rental

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"booklend/model"
)

// ErrConflict is returned by UpdateStatus when the conditional update
// matched no row: another writer changed the rental first.
var ErrConflict = errors.New("rental modified concurrently")

// Candidate is one sweep-eligible rental joined with the contact and
// book details the notices need.
type Candidate struct {
	model.Rental
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	BookName  string `json:"book_name"`
}

type Repo interface {
	// FindOverdueCandidates lists unreturned rentals past their due date
	// that have not yet been marked OVERDUE.
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]Candidate, error)

	// FindDueSoonCandidates lists unreturned rentals with a due date in
	// (now, until].
	FindDueSoonCandidates(ctx context.Context, now, until time.Time) ([]Candidate, error)

	// UpdateStatus transitions a rental from prior to next in a single
	// conditional write. Returns ErrConflict when prior no longer matches.
	UpdateStatus(ctx context.Context, rentalID int64, prior, next model.RentalStatus) error
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

const candidateColumns = `
			r.id          AS rental_id,
			r.user_id     AS user_id,
			r.book_id     AS book_id,
			u.name        AS user_name,
			u.email       AS user_email,
			b.name        AS book_name,
			r.status      AS status,
			r.due_date    AS due_date,
			r.returned    AS returned`

func (r *repo) FindOverdueCandidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	const q = `
			SELECT` + candidateColumns + `
			FROM rentals r
			JOIN users u ON u.id = r.user_id
			JOIN books b ON b.id = r.book_id
			WHERE r.returned = FALSE
			AND r.status <> 'OVERDUE'
			AND r.due_date < $1
			ORDER BY r.due_date, r.id`
	return r.queryCandidates(ctx, q, now)
}

func (r *repo) FindDueSoonCandidates(ctx context.Context, now, until time.Time) ([]Candidate, error) {
	const q = `
			SELECT` + candidateColumns + `
			FROM rentals r
			JOIN users u ON u.id = r.user_id
			JOIN books b ON b.id = r.book_id
			WHERE r.returned = FALSE
			AND r.due_date > $1
			AND r.due_date <= $2
			ORDER BY r.due_date, r.id`
	return r.queryCandidates(ctx, q, now, until)
}

func (r *repo) queryCandidates(ctx context.Context, q string, args ...any) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.BookID, &c.UserName,
			&c.UserEmail, &c.BookName, &c.Status, &c.DueDate, &c.Returned,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repo) UpdateStatus(ctx context.Context, rentalID int64, prior, next model.RentalStatus) error {
	// Guard on the prior status so a concurrent return wins cleanly.
	const q = `
			UPDATE rentals
			SET status = $3
			WHERE id = $1
			AND status = $2
			AND returned = FALSE`
	res, err := r.db.ExecContext(ctx, q, rentalID, prior, next)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrConflict
	}
	return nil
}
