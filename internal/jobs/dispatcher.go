package jobs

import (
	"context"
	"log"
	"time"
)

// FireResult classifies a fire attempt. Transient failures go back to
// pending until MaxAttempts; permanent ones fail immediately.
type FireResult int

const (
	FireSuccess FireResult = iota
	FireTransient
	FirePermanent
)

// Firer delivers one due job to the outside world (a guest message, a
// reminder). It must treat duplicate delivery as the dispatcher's
// problem, not its own: the claim guarantees at most one live attempt.
type Firer interface {
	Fire(ctx context.Context, job Job) (FireResult, error)
}

// Alerter notifies the operator channel about jobs that exhausted
// their retries. Never the end guest.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

type Dispatcher struct {
	Repo    *Repo
	Firer   Firer
	Alerter Alerter

	Interval       time.Duration // tick; jobs fire within one interval of run_at
	FireTimeout    time.Duration // per-attempt bound, counted as failure on expiry
	StaleThreshold time.Duration // age at which in_flight is presumed orphaned
}

func NewDispatcher(repo *Repo, firer Firer, alerter Alerter, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		Repo:           repo,
		Firer:          firer,
		Alerter:        alerter,
		Interval:       interval,
		FireTimeout:    30 * time.Second,
		StaleThreshold: 5 * time.Minute,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick is one dispatch cycle. Safe to run concurrently with other
// ticks: every job is protected by its conditional claim.
func (d *Dispatcher) Tick(ctx context.Context) {
	if n, err := d.Repo.ReclaimStale(ctx, d.StaleThreshold); err != nil {
		log.Printf("jobs: reclaim stale: %v", err)
	} else if n > 0 {
		log.Printf("jobs: reclaimed %d stale in_flight jobs", n)
	}

	due, err := d.Repo.Due(ctx, d.Repo.Now())
	if err != nil {
		log.Printf("jobs: list due: %v", err)
		return
	}

	for _, job := range due {
		won, err := d.Repo.Claim(ctx, job.ID)
		if err != nil {
			log.Printf("jobs: claim %d: %v", job.ID, err)
			continue
		}
		if !won {
			// another tick or worker got it
			continue
		}
		d.fire(ctx, job)
	}
}

func (d *Dispatcher) fire(ctx context.Context, job Job) {
	fctx, cancel := context.WithTimeout(ctx, d.FireTimeout)
	defer cancel()

	res, ferr := d.Firer.Fire(fctx, job)
	if fctx.Err() != nil && res == FireSuccess {
		// Timed out without a verdict: treat as transient.
		res = FireTransient
		ferr = fctx.Err()
	}

	switch res {
	case FireSuccess:
		if err := d.Repo.MarkSent(ctx, job.ID); err != nil {
			log.Printf("jobs: mark sent %d: %v", job.ID, err)
		}
	case FirePermanent:
		msg := errString(ferr)
		if err := d.Repo.MarkFailed(ctx, job.ID, job.Attempts+1, msg); err != nil {
			log.Printf("jobs: mark failed %d: %v", job.ID, err)
		}
		d.alert(ctx, job, msg)
	default:
		attempts := job.Attempts + 1
		msg := errString(ferr)
		if attempts >= job.MaxAttempts {
			if err := d.Repo.MarkFailed(ctx, job.ID, attempts, msg); err != nil {
				log.Printf("jobs: mark failed %d: %v", job.ID, err)
			}
			d.alert(ctx, job, msg)
			return
		}
		if err := d.Repo.Release(ctx, job.ID, attempts, msg); err != nil {
			log.Printf("jobs: release %d: %v", job.ID, err)
		}
	}
}

func (d *Dispatcher) alert(ctx context.Context, job Job, msg string) {
	if d.Alerter == nil {
		return
	}
	d.Alerter.Alert(ctx, "⚠️ Заплановане повідомлення не відправлено: job="+job.Type+
		" subject="+job.SubjectRef+" помилка: "+msg)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
