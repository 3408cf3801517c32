package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (*Repo, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Job{}))
	return NewRepo(gdb), gdb
}

func seedJob(t *testing.T, gdb *gorm.DB, job Job) Job {
	t.Helper()
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 8
	}
	if len(job.Payload) == 0 {
		job.Payload = []byte("{}")
	}
	require.NoError(t, gdb.Create(&job).Error)
	return job
}

func TestScheduleTxCreatesOneJobPerTouchpoint(t *testing.T) {
	repo, gdb := newTestRepo(t)
	anchor := time.Date(2027, 2, 22, 0, 0, 0, 0, time.UTC)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return repo.ScheduleTx(tx, "booking-1", anchor, BookingTouchpoints, nil)
	})
	require.NoError(t, err)

	rows, err := repo.List(context.Background(), "", "booking-1", 0)
	require.NoError(t, err)
	require.Len(t, rows, len(BookingTouchpoints))
	for i, row := range rows {
		require.Equal(t, BookingTouchpoints[i].Type, row.Type)
		require.Equal(t, StatusPending, row.Status)
		require.WithinDuration(t, anchor.Add(BookingTouchpoints[i].Offset), row.RunAt, time.Second)
		require.JSONEq(t, "{}", string(row.Payload))
	}
}

func TestScheduleTxRollsBackWithCaller(t *testing.T) {
	repo, gdb := newTestRepo(t)
	anchor := time.Now()

	sentinel := gorm.ErrInvalidData
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := repo.ScheduleTx(tx, "booking-2", anchor, BookingTouchpoints, nil); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var n int64
	require.NoError(t, gdb.Model(&Job{}).Count(&n).Error)
	require.Zero(t, n, "jobs must not outlive the enclosing transaction")
}

func TestDueRespectsRunAt(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	past := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: now.Add(-time.Minute)})
	seedJob(t, gdb, Job{Type: TypeReviewAsk, SubjectRef: "b1", RunAt: now.Add(time.Hour)})
	seedJob(t, gdb, Job{Type: TypeWelfareCheck, SubjectRef: "b1", RunAt: now.Add(-time.Hour), Status: StatusSent})

	due, err := repo.Due(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, past.ID, due[0].ID)
}

func TestClaimWinsExactlyOnce(t *testing.T) {
	repo, gdb := newTestRepo(t)
	job := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: time.Now()})

	ctx := context.Background()
	wins := 0
	for i := 0; i < 3; i++ {
		won, err := repo.Claim(ctx, job.ID)
		require.NoError(t, err)
		if won {
			wins++
		}
	}
	require.Equal(t, 1, wins, "only the first claim of a pending job may win")

	var got Job
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusInFlight, got.Status)
	require.NotNil(t, got.ClaimedAt)
}

func TestReclaimStaleReleasesOrphans(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }

	old := now.Add(-10 * time.Minute)
	fresh := now.Add(-time.Minute)
	orphan := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: old, Status: StatusInFlight, ClaimedAt: &old})
	live := seedJob(t, gdb, Job{Type: TypeReviewAsk, SubjectRef: "b1", RunAt: old, Status: StatusInFlight, ClaimedAt: &fresh})

	n, err := repo.ReclaimStale(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	var got Job
	require.NoError(t, gdb.First(&got, orphan.ID).Error)
	require.Equal(t, StatusPending, got.Status)
	require.Nil(t, got.ClaimedAt)

	got = Job{}
	require.NoError(t, gdb.First(&got, live.ID).Error)
	require.Equal(t, StatusInFlight, got.Status)
}

func TestSkipPendingLeavesSentAlone(t *testing.T) {
	repo, gdb := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		seedJob(t, gdb, Job{Type: TypeWelfareCheck, SubjectRef: "booking-9", RunAt: now.Add(time.Duration(i) * time.Hour)})
	}
	seedJob(t, gdb, Job{Type: TypePreArrivalWeek, SubjectRef: "booking-9", RunAt: now, Status: StatusSent})
	seedJob(t, gdb, Job{Type: TypePreArrivalInfo, SubjectRef: "booking-9", RunAt: now, Status: StatusSent})
	other := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "booking-10", RunAt: now})

	n, err := repo.SkipPending(ctx, "booking-9")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	skipped, err := repo.List(ctx, StatusSkipped, "booking-9", 0)
	require.NoError(t, err)
	require.Len(t, skipped, 5)

	sent, err := repo.List(ctx, StatusSent, "booking-9", 0)
	require.NoError(t, err)
	require.Len(t, sent, 2)

	var got Job
	require.NoError(t, gdb.First(&got, other.ID).Error)
	require.Equal(t, StatusPending, got.Status, "other subjects are untouched")
}

func TestReleaseAndMarkFailedKeepAuditFields(t *testing.T) {
	repo, gdb := newTestRepo(t)
	ctx := context.Background()
	job := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: time.Now()})

	won, err := repo.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.Release(ctx, job.ID, 1, "telegram: 502"))
	var got Job
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	require.Equal(t, "telegram: 502", *got.LastError)
	require.Nil(t, got.ClaimedAt)

	require.NoError(t, repo.MarkFailed(ctx, job.ID, 8, "telegram: 403"))
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 8, got.Attempts)
	require.NotNil(t, got.LastError)
	require.Equal(t, "telegram: 403", *got.LastError)
}
