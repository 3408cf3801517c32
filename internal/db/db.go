package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/jobs"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ledger"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/session"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&session.Session{},
		&ledger.Transaction{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		// dispatch: due scan and stale-claim reclaim
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_claimed on jobs(status, claimed_at);`,
		`create index if not exists idx_jobs_subject on jobs(subject_ref, status);`,
		// reconciler: unsynced sweep touches a small partial index
		`create index if not exists idx_tx_unsynced on transactions(created_at) where sheets_synced = false;`,
		`create index if not exists idx_tx_type_created on transactions(type, created_at desc);`,
		// stale-session sweep
		`create index if not exists idx_sessions_updated on sessions(updated_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
