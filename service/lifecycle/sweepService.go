package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booklend/model"
	"booklend/repository/mailer"
	noticerepo "booklend/repository/notice"
	rentalrepo "booklend/repository/rental"
	"booklend/service/notifier"
)

// errors used by controllers and the scheduler

type ErrCode string

const (
	ErrInvalidArgument  ErrCode = "INVALID_ARGUMENT"
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrSweepRunning     ErrCode = "SWEEP_RUNNING"
)

var errMissingDueDate = errors.New("rental has no due date")

type codedError struct {
	code  ErrCode
	cause error
}

func (e codedError) Error() string {
	if e.cause == nil {
		return string(e.code)
	}
	return string(e.code) + ": " + e.cause.Error()
}
func (e codedError) Code() ErrCode { return e.code }
func (e codedError) Unwrap() error { return e.cause }

func makeErr(c ErrCode, cause error) error { return codedError{code: c, cause: cause} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Summary reports what one sweep invocation did.
type Summary struct {
	Examined     int `json:"examined"`
	Transitioned int `json:"transitioned"`
	Notified     int `json:"notified"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Sweeper runs the two lifecycle scans. Both operations take the clock
// reading as an argument and never consult a global clock, and both are
// guarded against overlapping themselves: a second concurrent call of
// the same sweep returns a SWEEP_RUNNING error. The two guards are
// independent, so a slow overdue sweep never blocks the due-soon sweep.
type Sweeper interface {
	OverdueSweep(ctx context.Context, now time.Time) (Summary, error)
	DueSoonSweep(ctx context.Context, now time.Time) (Summary, error)
}

type sweeper struct {
	rentals rentalrepo.Repo
	notices noticerepo.Repo
	sender  notifier.Sender
	tmpl    Templates
	window  time.Duration
	log     *slog.Logger

	overdueMu sync.Mutex
	dueSoonMu sync.Mutex
}

func NewSweeper(rentals rentalrepo.Repo, notices noticerepo.Repo, sender notifier.Sender, tmpl Templates, window time.Duration, log *slog.Logger) Sweeper {
	return &sweeper{
		rentals: rentals,
		notices: notices,
		sender:  sender,
		tmpl:    tmpl,
		window:  window,
		log:     log,
	}
}

// OverdueSweep transitions every unreturned rental past its due date to
// OVERDUE and sends one overdue notice per transition. Failures are
// isolated per rental; only a rental-store failure aborts the sweep.
func (s *sweeper) OverdueSweep(ctx context.Context, now time.Time) (Summary, error) {
	if !s.overdueMu.TryLock() {
		return Summary{}, makeErr(ErrSweepRunning, errors.New("overdue sweep already in flight"))
	}
	defer s.overdueMu.Unlock()

	var sum Summary
	cands, err := s.rentals.FindOverdueCandidates(ctx, now)
	if err != nil {
		return sum, makeErr(ErrStoreUnavailable, fmt.Errorf("find overdue candidates: %w", err))
	}

	for _, c := range cands {
		sum.Examined++

		next, err := Evaluate(c.DueDate, c.Returned, now)
		if err != nil {
			s.log.Error("overdue sweep: bad candidate", "rental_id", c.ID, "err", err)
			sum.Failed++
			continue
		}
		if next != model.RentalOverdue {
			// Candidate query and evaluator disagree; trust the evaluator.
			sum.Skipped++
			continue
		}

		err = s.rentals.UpdateStatus(ctx, c.ID, c.Status, model.RentalOverdue)
		if errors.Is(err, rentalrepo.ErrConflict) {
			// Another writer got there first; the rental is already in a
			// valid state, so there is nothing to retry.
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, makeErr(ErrStoreUnavailable, fmt.Errorf("update rental %d: %w", c.ID, err))
		}
		sum.Transitioned++

		switch s.notify(ctx, c, model.NoticeOverdue, now) {
		case noticeSent:
			sum.Notified++
		case noticeSkipped:
			sum.Skipped++
		case noticeFailed:
			sum.Failed++
		}
	}
	return sum, nil
}

// DueSoonSweep sends a reminder for every unreturned rental whose due
// date falls inside the lookahead window. No status changes here: the
// rentals are not overdue yet.
func (s *sweeper) DueSoonSweep(ctx context.Context, now time.Time) (Summary, error) {
	if !s.dueSoonMu.TryLock() {
		return Summary{}, makeErr(ErrSweepRunning, errors.New("due-soon sweep already in flight"))
	}
	defer s.dueSoonMu.Unlock()

	var sum Summary
	cands, err := s.rentals.FindDueSoonCandidates(ctx, now, now.Add(s.window))
	if err != nil {
		return sum, makeErr(ErrStoreUnavailable, fmt.Errorf("find due-soon candidates: %w", err))
	}

	for _, c := range cands {
		sum.Examined++

		status, err := Evaluate(c.DueDate, c.Returned, now)
		if err != nil {
			s.log.Error("due-soon sweep: bad candidate", "rental_id", c.ID, "err", err)
			sum.Failed++
			continue
		}
		if status != model.RentalActive {
			sum.Skipped++
			continue
		}

		switch s.notify(ctx, c, model.NoticeDueSoon, now) {
		case noticeSent:
			sum.Notified++
		case noticeSkipped:
			sum.Skipped++
		case noticeFailed:
			sum.Failed++
		}
	}
	return sum, nil
}

type noticeOutcome int

const (
	noticeSent noticeOutcome = iota
	noticeSkipped
	noticeFailed
)

// notify sends one notice for a rental unless a notice of the same kind
// was already sent inside the dedup window. Notice-store hiccups only
// log: a missed dedup read must not suppress a legitimate notice, and a
// failed mark must not undo a delivered one.
func (s *sweeper) notify(ctx context.Context, c rentalrepo.Candidate, kind model.NoticeKind, now time.Time) noticeOutcome {
	last, found, err := s.notices.LastSent(ctx, c.ID, kind)
	if err != nil {
		s.log.Error("notice store read failed, assuming sendable", "rental_id", c.ID, "kind", kind, "err", err)
	}
	if found && now.Sub(last) < s.window {
		return noticeSkipped
	}

	subject, body := s.tmpl.Render(kind, c)
	msg := mailer.Message{
		To:      c.UserEmail,
		ToName:  c.UserName,
		Subject: subject,
		Body:    body,
		Key:     fmt.Sprintf("%s:%d", kind, c.ID),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("notice delivery failed", "rental_id", c.ID, "kind", kind, "err", err)
		return noticeFailed
	}

	if err := s.notices.MarkSent(ctx, c.ID, kind, now); err != nil {
		s.log.Error("could not record sent notice", "rental_id", c.ID, "kind", kind, "err", err)
	}
	return noticeSent
}
