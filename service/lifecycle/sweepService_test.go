// service/lifecycle/sweep_service_test.go
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"booklend/model"
	"booklend/repository/mailer"
	rentalrepo "booklend/repository/rental"

	"github.com/stretchr/testify/require"
)

// ---- fakes ----

// fakeRentalStore keeps rentals in memory and mimics the SQL repo's
// query and conditional-update semantics.
type fakeRentalStore struct {
	mu       sync.Mutex
	rentals  map[int64]*rentalrepo.Candidate
	findErr  error
	onFind   func()
	conflict map[int64]bool // force a conflict for these ids
}

func newFakeRentalStore(rs ...rentalrepo.Candidate) *fakeRentalStore {
	f := &fakeRentalStore{rentals: map[int64]*rentalrepo.Candidate{}}
	for i := range rs {
		c := rs[i]
		f.rentals[c.ID] = &c
	}
	return f
}

func (f *fakeRentalStore) FindOverdueCandidates(ctx context.Context, now time.Time) ([]rentalrepo.Candidate, error) {
	if f.onFind != nil {
		f.onFind()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []rentalrepo.Candidate
	for _, c := range f.rentals {
		if !c.Returned && c.Status != model.RentalOverdue && c.DueDate.Before(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRentalStore) FindDueSoonCandidates(ctx context.Context, now, until time.Time) ([]rentalrepo.Candidate, error) {
	if f.onFind != nil {
		f.onFind()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []rentalrepo.Candidate
	for _, c := range f.rentals {
		if !c.Returned && c.DueDate.After(now) && !c.DueDate.After(until) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRentalStore) UpdateStatus(ctx context.Context, rentalID int64, prior, next model.RentalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rentals[rentalID]
	if !ok || f.conflict[rentalID] || c.Returned || c.Status != prior {
		return rentalrepo.ErrConflict
	}
	c.Status = next
	return nil
}

// fakeNoticeStore is an in-memory notice log.
type fakeNoticeStore struct {
	mu      sync.Mutex
	sent    map[string]time.Time
	readErr error
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{sent: map[string]time.Time{}}
}

func (f *fakeNoticeStore) LastSent(ctx context.Context, rentalID int64, kind model.NoticeKind) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return time.Time{}, false, f.readErr
	}
	at, ok := f.sent[key(rentalID, kind)]
	return at, ok, nil
}

func (f *fakeNoticeStore) MarkSent(ctx context.Context, rentalID int64, kind model.NoticeKind, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[key(rentalID, kind)] = at
	return nil
}

func key(rentalID int64, kind model.NoticeKind) string {
	return string(kind) + ":" + strconv.FormatInt(rentalID, 10)
}

// fakeSender records messages and fails for chosen recipients.
type fakeSender struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failFor map[string]error // by recipient address
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// ---- helpers ----

var testLog = slog.New(slog.NewTextHandler(testWriter{}, nil))

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func candidate(id int64, due time.Time) rentalrepo.Candidate {
	return rentalrepo.Candidate{
		Rental: model.Rental{
			ID:       id,
			UserID:   id * 10,
			BookID:   id * 100,
			Status:   model.RentalActive,
			RentedAt: due.Add(-7 * 24 * time.Hour),
			DueDate:  due,
		},
		UserName:  "Reader",
		UserEmail: "reader@example.com",
		BookName:  "The Go Programming Language",
	}
}

func newTestSweeper(rs *fakeRentalStore, ns *fakeNoticeStore, snd *fakeSender) Sweeper {
	return NewSweeper(rs, ns, snd, PlainTemplates{}, 24*time.Hour, testLog)
}

// ---- overdue sweep ----

func TestOverdueSweep_TransitionsAndNotifies(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(-24*time.Hour)))
	ns := newFakeNoticeStore()
	snd := &fakeSender{}

	sum, err := newTestSweeper(rs, ns, snd).OverdueSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 1, Transitioned: 1, Notified: 1}, sum)

	require.Equal(t, model.RentalOverdue, rs.rentals[1].Status)
	require.Len(t, snd.sent, 1)
	require.Equal(t, "reader@example.com", snd.sent[0].To)
	require.Equal(t, "OVERDUE_NOTICE:1", snd.sent[0].Key)
}

func TestOverdueSweep_SecondRunIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(-24*time.Hour)))
	ns := newFakeNoticeStore()
	snd := &fakeSender{}
	sw := newTestSweeper(rs, ns, snd)

	_, err := sw.OverdueSweep(context.Background(), now)
	require.NoError(t, err)

	sum, err := sw.OverdueSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{}, sum)
	require.Equal(t, 1, snd.count())
}

func TestOverdueSweep_DeliveryFailureIsolated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := candidate(1, now.Add(-time.Hour))
	a.UserEmail = "bounce@example.com"
	b := candidate(2, now.Add(-time.Hour))

	rs := newFakeRentalStore(a, b)
	ns := newFakeNoticeStore()
	snd := &fakeSender{failFor: map[string]error{"bounce@example.com": errors.New("smtp 550")}}

	sum, err := newTestSweeper(rs, ns, snd).OverdueSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 2, Transitioned: 2, Notified: 1, Failed: 1}, sum)

	// Both status transitions stick regardless of delivery outcome.
	require.Equal(t, model.RentalOverdue, rs.rentals[1].Status)
	require.Equal(t, model.RentalOverdue, rs.rentals[2].Status)
	require.Len(t, snd.sent, 1)
	require.Equal(t, "reader@example.com", snd.sent[0].To)
}

func TestOverdueSweep_ConcurrentReturnSkipped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(-time.Hour)))
	rs.conflict = map[int64]bool{1: true}
	ns := newFakeNoticeStore()
	snd := &fakeSender{}

	sum, err := newTestSweeper(rs, ns, snd).OverdueSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 1, Skipped: 1}, sum)
	require.Zero(t, snd.count())
}

func TestOverdueSweep_StoreUnavailable(t *testing.T) {
	rs := newFakeRentalStore()
	rs.findErr = errors.New("connection refused")
	ns := newFakeNoticeStore()
	snd := &fakeSender{}

	sum, err := newTestSweeper(rs, ns, snd).OverdueSweep(context.Background(), time.Now().UTC())
	require.Error(t, err)
	require.Equal(t, ErrStoreUnavailable, Code(err))
	require.Equal(t, Summary{}, sum)
}

func TestOverdueSweep_Reentrancy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(-time.Hour)))
	ns := newFakeNoticeStore()
	snd := &fakeSender{}
	sw := newTestSweeper(rs, ns, snd)

	entered := make(chan struct{})
	release := make(chan struct{})
	rs.onFind = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := sw.OverdueSweep(context.Background(), now)
		done <- err
	}()
	<-entered

	// Second invocation while the first is in flight must be refused,
	// not run concurrently.
	_, err := sw.OverdueSweep(context.Background(), now)
	require.Equal(t, ErrSweepRunning, Code(err))

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 1, snd.count())
}

// ---- due-soon sweep ----

func TestDueSoonSweep_NotifiesOnceInsideWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(12*time.Hour)))
	ns := newFakeNoticeStore()
	snd := &fakeSender{}
	sw := newTestSweeper(rs, ns, snd)

	sum, err := sw.DueSoonSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 1, Notified: 1}, sum)
	require.Equal(t, "DUE_SOON_NOTICE:1", snd.sent[0].Key)

	// Status is untouched: the rental is not overdue yet.
	require.Equal(t, model.RentalActive, rs.rentals[1].Status)

	// Ten minutes later, still inside the window: no re-notify.
	sum, err = sw.DueSoonSweep(context.Background(), now.Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 1, Skipped: 1}, sum)
	require.Equal(t, 1, snd.count())
}

func TestDueSoonSweep_OutsideWindowExcluded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	far := candidate(1, now.Add(48*time.Hour))
	returned := candidate(2, now.Add(6*time.Hour))
	returned.Returned = true
	returned.Status = model.RentalReturned

	rs := newFakeRentalStore(far, returned)
	ns := newFakeNoticeStore()
	snd := &fakeSender{}
	sw := newTestSweeper(rs, ns, snd)

	sum, err := sw.DueSoonSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{}, sum)

	// Neither sweep matches the 48-hour-out rental or the returned one.
	sum, err = sw.OverdueSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{}, sum)
	require.Zero(t, snd.count())
}

func TestDueSoonSweep_NoticeStoreReadFailureStillSends(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rs := newFakeRentalStore(candidate(1, now.Add(time.Hour)))
	ns := newFakeNoticeStore()
	ns.readErr = errors.New("connection reset")
	snd := &fakeSender{}

	sum, err := newTestSweeper(rs, ns, snd).DueSoonSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Summary{Examined: 1, Notified: 1}, sum)
}
