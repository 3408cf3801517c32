package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedFirer struct {
	results []FireResult
	errs    []error
	fired   []Job
}

func (f *scriptedFirer) Fire(ctx context.Context, job Job) (FireResult, error) {
	i := len(f.fired)
	f.fired = append(f.fired, job)
	if i >= len(f.results) {
		return FireSuccess, nil
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

type recordingAlerter struct {
	msgs []string
}

func (a *recordingAlerter) Alert(ctx context.Context, msg string) {
	a.msgs = append(a.msgs, msg)
}

func TestTickFiresDueAndMarksSent(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }

	due := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: now.Add(-time.Minute)})
	future := seedJob(t, gdb, Job{Type: TypeReviewAsk, SubjectRef: "b1", RunAt: now.Add(time.Hour)})

	firer := &scriptedFirer{}
	d := NewDispatcher(repo, firer, nil, time.Minute)
	d.Tick(context.Background())

	require.Len(t, firer.fired, 1)
	require.Equal(t, due.ID, firer.fired[0].ID)

	var got Job
	require.NoError(t, gdb.First(&got, due.ID).Error)
	require.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)

	got = Job{}
	require.NoError(t, gdb.First(&got, future.ID).Error)
	require.Equal(t, StatusPending, got.Status)
}

func TestTickIsIdempotentAcrossReplay(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }
	seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1", RunAt: now.Add(-time.Minute)})

	firer := &scriptedFirer{}
	d := NewDispatcher(repo, firer, nil, time.Minute)
	d.Tick(context.Background())
	d.Tick(context.Background())

	require.Len(t, firer.fired, 1, "a sent job must not fire again")
}

func TestTransientFailureRetriesThenFails(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }

	job := seedJob(t, gdb, Job{Type: TypeWelfareCheck, SubjectRef: "b1", RunAt: now.Add(-time.Minute), MaxAttempts: 2})

	firer := &scriptedFirer{
		results: []FireResult{FireTransient, FireTransient},
		errs:    []error{errors.New("telegram: 502"), errors.New("telegram: 502")},
	}
	alerter := &recordingAlerter{}
	d := NewDispatcher(repo, firer, alerter, time.Minute)

	d.Tick(context.Background())
	var got Job
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusPending, got.Status, "first transient failure goes back in line")
	require.Equal(t, 1, got.Attempts)
	require.Empty(t, alerter.msgs)

	d.Tick(context.Background())
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusFailed, got.Status, "attempts exhausted")
	require.Equal(t, 2, got.Attempts)
	require.Len(t, alerter.msgs, 1)
	require.Contains(t, alerter.msgs[0], "telegram: 502")
}

func TestPermanentFailureFailsImmediately(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }

	job := seedJob(t, gdb, Job{Type: TypePreArrivalInfo, SubjectRef: "b1", RunAt: now.Add(-time.Minute)})

	firer := &scriptedFirer{
		results: []FireResult{FirePermanent},
		errs:    []error{errors.New("telegram: chat not found")},
	}
	alerter := &recordingAlerter{}
	d := NewDispatcher(repo, firer, alerter, time.Minute)
	d.Tick(context.Background())

	var got Job
	require.NoError(t, gdb.First(&got, job.ID).Error)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Len(t, alerter.msgs, 1)
	require.Contains(t, alerter.msgs[0], job.SubjectRef)
}

func TestTickReclaimsStaleBeforeDispatch(t *testing.T) {
	repo, gdb := newTestRepo(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return now }

	claimed := now.Add(-10 * time.Minute)
	orphan := seedJob(t, gdb, Job{Type: TypeCheckinDay, SubjectRef: "b1",
		RunAt: now.Add(-time.Hour), Status: StatusInFlight, ClaimedAt: &claimed})

	firer := &scriptedFirer{}
	d := NewDispatcher(repo, firer, nil, time.Minute)
	d.Tick(context.Background())

	require.Len(t, firer.fired, 1, "reclaimed job dispatches in the same tick")
	var got Job
	require.NoError(t, gdb.First(&got, orphan.ID).Error)
	require.Equal(t, StatusSent, got.Status)
}
