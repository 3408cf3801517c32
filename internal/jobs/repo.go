package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

// ScheduleTx inserts one job per touch point, run_at = anchor + offset,
// inside the caller's transaction so the jobs and their anchoring
// record either both exist or neither does.
func (r *Repo) ScheduleTx(tx *gorm.DB, subjectRef string, anchor time.Time, plan []Touchpoint, payload []byte) error {
	now := r.Now()
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	rows := make([]Job, 0, len(plan))
	for _, tp := range plan {
		rows = append(rows, Job{
			Type:       tp.Type,
			SubjectRef: subjectRef,
			RunAt:      anchor.Add(tp.Offset),
			Status:     StatusPending,
			Payload:    payload,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return tx.Create(&rows).Error
}

// Due lists pending jobs whose run_at has passed, oldest first, so jobs
// for the same anchor dispatch in run_at order within a tick.
func (r *Repo) Due(ctx context.Context, now time.Time) ([]Job, error) {
	var due []Job
	err := r.DB.WithContext(ctx).
		Where("status = ? AND run_at <= ?", StatusPending, now).
		Order("run_at asc").
		Find(&due).Error
	return due, err
}

// Claim performs the exactly-once guard: a conditional update that
// succeeds only if the row is still pending. Racing dispatchers (or a
// restarted worker replaying the same tick) cannot both win.
func (r *Repo) Claim(ctx context.Context, id uint64) (bool, error) {
	now := r.Now()
	res := r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{
			"status":     StatusInFlight,
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReclaimStale releases in_flight rows whose claimer presumably
// crashed, making them claimable again on the next tick.
func (r *Repo) ReclaimStale(ctx context.Context, threshold time.Duration) (int64, error) {
	now := r.Now()
	res := r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("status = ? AND claimed_at < ?", StatusInFlight, now.Add(-threshold)).
		Updates(map[string]any{
			"status":     StatusPending,
			"claimed_at": nil,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *Repo) MarkSent(ctx context.Context, id uint64) error {
	now := r.Now()
	return r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusSent,
			"sent_at":    now,
			"updated_at": now,
		}).Error
}

// Release puts a transiently-failed job back in line for the next tick.
func (r *Repo) Release(ctx context.Context, id uint64, attempts int, errMsg string) error {
	now := r.Now()
	return r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"claimed_at": nil,
			"last_error": errMsg,
			"updated_at": now,
		}).Error
}

// MarkFailed is terminal: the job never retries again without operator
// intervention.
func (r *Repo) MarkFailed(ctx context.Context, id uint64, attempts int, errMsg string) error {
	now := r.Now()
	return r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusFailed,
			"attempts":   attempts,
			"last_error": errMsg,
			"updated_at": now,
		}).Error
}

// SkipPending cancels the not-yet-fired jobs of a cancelled anchor.
// Jobs already in_flight or sent are left alone: an action that went
// out cannot be recalled.
func (r *Repo) SkipPending(ctx context.Context, subjectRef string) (int64, error) {
	now := r.Now()
	res := r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("subject_ref = ? AND status = ?", subjectRef, StatusPending).
		Updates(map[string]any{
			"status":     StatusSkipped,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// List is the operator view, filterable by status and anchor.
func (r *Repo) List(ctx context.Context, status, subjectRef string, limit int) ([]Job, error) {
	q := r.DB.WithContext(ctx).Model(&Job{}).Order("run_at asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if subjectRef != "" {
		q = q.Where("subject_ref = ?", subjectRef)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Job
	err := q.Find(&out).Error
	return out, err
}
