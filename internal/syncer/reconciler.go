// Package syncer keeps the spreadsheet mirror eventually consistent
// with the transactions table. The database is the source of truth;
// mirror writes are retried until they land, keyed by the transaction
// id so a write whose acknowledgement was lost never duplicates a row.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/ledger"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/session"
)

// Mirror is the external spreadsheet's write surface. Upsert must be
// idempotent by natural key: calling it twice with identical arguments
// yields one row.
type Mirror interface {
	Upsert(ctx context.Context, naturalKey string, fields map[string]any) error
}

// Alerter mirrors the jobs package contract: operator-facing only.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

type Reconciler struct {
	DB       *gorm.DB
	Mirror   Mirror
	Alerter  Alerter
	Sessions *session.Store

	Interval       time.Duration
	SessionTimeout time.Duration

	// After this many failed attempts the operator is told, but the
	// record keeps being swept; giving up is not an option here.
	AlertAfter int

	Now func() time.Time
}

func NewReconciler(db *gorm.DB, mirror Mirror, alerter Alerter, sessions *session.Store, interval, sessionTimeout time.Duration) *Reconciler {
	return &Reconciler{
		DB:             db,
		Mirror:         mirror,
		Alerter:        alerter,
		Sessions:       sessions,
		Interval:       interval,
		SessionTimeout: sessionTimeout,
		AlertAfter:     10,
		Now:            time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
			r.cleanupSessions(ctx)
		}
	}
}

// Sweep retries every unsynced transaction, oldest first.
func (r *Reconciler) Sweep(ctx context.Context) {
	var pending []ledger.Transaction
	err := r.DB.WithContext(ctx).
		Where("sheets_synced = ?", false).
		Order("created_at asc").
		Find(&pending).Error
	if err != nil {
		log.Printf("syncer: list unsynced: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("syncer: retrying %d unsynced transactions", len(pending))
	for i := range pending {
		if err := r.sync(ctx, &pending[i]); err != nil {
			log.Printf("syncer: %s: %v", pending[i].ID, err)
		}
	}
}

// SyncOne implements ledger.Syncer for the hot-path write right after
// a record is created.
func (r *Reconciler) SyncOne(ctx context.Context, id string) error {
	var tx ledger.Transaction
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	if tx.SheetsSynced {
		return nil
	}
	return r.sync(ctx, &tx)
}

func (r *Reconciler) sync(ctx context.Context, tx *ledger.Transaction) error {
	now := r.Now()

	if err := r.Mirror.Upsert(ctx, tx.ID, MirrorFields(tx)); err != nil {
		attempts := tx.SyncAttempts + 1
		if uerr := r.DB.WithContext(ctx).
			Model(&ledger.Transaction{}).
			Where("id = ?", tx.ID).
			Updates(map[string]any{
				"sync_attempts": attempts,
				"last_sync_at":  now,
				"updated_at":    now,
			}).Error; uerr != nil {
			return uerr
		}
		if attempts == r.AlertAfter && r.Alerter != nil {
			r.Alerter.Alert(ctx, fmt.Sprintf(
				"⚠️ Запис %s не потрапив у таблицю після %d спроб, продовжую спроби", tx.ID, attempts))
		}
		return err
	}

	return r.DB.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("id = ?", tx.ID).
		Updates(map[string]any{
			"sheets_synced": true,
			"sync_attempts": 0,
			"last_sync_at":  now,
			"updated_at":    now,
		}).Error
}

// Backlog counts records still waiting on the mirror.
func (r *Reconciler) Backlog(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("sheets_synced = ?", false).
		Count(&n).Error
	return n, err
}

func (r *Reconciler) cleanupSessions(ctx context.Context) {
	if r.Sessions == nil || r.SessionTimeout <= 0 {
		return
	}
	n, err := r.Sessions.ClearStale(ctx, r.SessionTimeout)
	if err != nil {
		log.Printf("syncer: stale session cleanup: %v", err)
		return
	}
	if n > 0 {
		log.Printf("syncer: cleaned up %d stale sessions", n)
	}
}
