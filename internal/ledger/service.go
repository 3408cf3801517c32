package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/jobs"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/parse"
)

var ErrNotFound = errors.New("transaction not found")

// Syncer pushes one freshly-created record to the mirror, best effort.
// The reconciler sweep covers anything this misses.
type Syncer interface {
	SyncOne(ctx context.Context, id string) error
}

type Service struct {
	DB   *gorm.DB
	Jobs *jobs.Repo

	// Optional hot-path mirror write after commit.
	Syncer Syncer

	Now func() time.Time
}

func NewService(db *gorm.DB, jobRepo *jobs.Repo) *Service {
	return &Service{DB: db, Jobs: jobRepo, Now: time.Now}
}

// CreateRecord implements flow.Recorder. The transaction row and, for
// bookings with a known check-in, its guest touch-point jobs are
// inserted atomically: either both exist or neither does.
func (s *Service) CreateRecord(ctx context.Context, req flow.RecordRequest) (string, error) {
	tx, err := s.buildTransaction(req)
	if err != nil {
		return "", err
	}

	err = s.DB.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return err
		}
		if tx.Type == TypeIncome && tx.CheckinDate != nil {
			payload, _ := json.Marshal(map[string]string{
				"guest_name": tx.Counterparty,
				"property":   req.Fields["property"],
				"checkin":    req.Fields["checkin"],
				"checkout":   req.Fields["checkout"],
			})
			if err := s.Jobs.ScheduleTx(dbtx, tx.ID, *tx.CheckinDate, jobs.BookingTouchpoints, payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.Syncer != nil {
		if serr := s.Syncer.SyncOne(ctx, tx.ID); serr != nil {
			log.Printf("ledger: immediate mirror write for %s failed, reconciler will retry: %v", tx.ID, serr)
		}
	}

	return tx.ID, nil
}

func (s *Service) buildTransaction(req flow.RecordRequest) (*Transaction, error) {
	f := req.Fields

	if req.Type != TypeIncome && req.Type != TypeExpense {
		return nil, errors.New("ledger: unknown record type " + req.Type)
	}

	amount, err := parse.Amount(f["amount"])
	if err != nil {
		return nil, &flow.ValidationError{Msg: "сума відсутня або невірна, операцію не збережено"}
	}

	now := s.Now()

	date := now
	if f["date"] != "" {
		if d, derr := parse.UADate(f["date"]); derr == nil {
			date = d
		}
	}

	tx := &Transaction{
		ID:           uuid.NewString(),
		Type:         req.Type,
		Date:         date,
		Amount:       amount,
		Platform:     f["platform"],
		PaymentType:  f["payment_type"],
		AccountType:  f["account_type"],
		SupDuration:  f["sup_duration"],
		Notes:        f["notes"],
		ReceiptURL:   f["receipt_url"],
		Source:       nonEmpty(f["source"], "manual"),
		SheetsSynced: false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if f["property_id"] != "" {
		tx.Properties = pq.StringArray{f["property_id"]}
	}

	switch req.Type {
	case TypeIncome:
		tx.Counterparty = f["guest_name"]
		if ci, cerr := parse.UADate(f["checkin"]); cerr == nil && f["checkin"] != "" {
			tx.CheckinDate = &ci
		}
		if co, cerr := parse.UADate(f["checkout"]); cerr == nil && f["checkout"] != "" {
			tx.CheckoutDate = &co
		}
	case TypeExpense:
		tx.Counterparty = f["vendor"]
		tx.Category = f["category"]
		tx.Description = f["description"]
		tx.PaidBy = f["paid_by"]
		tx.AccountType = nonEmpty(f["payment_method"], f["account_type"])
	}

	// Present-but-empty fields were explicitly skipped mid-flow.
	for k, v := range f {
		if v == "" {
			tx.SkippedFields = append(tx.SkippedFields, k)
		}
	}

	return tx, nil
}

// CancelBooking marks a booking cancelled and skips its pending touch
// points. Already-sent (or currently firing) touch points stay as they
// are: a message that went out cannot be recalled.
func (s *Service) CancelBooking(ctx context.Context, id string) (int64, error) {
	now := s.Now()
	res := s.DB.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND cancelled_at IS NULL", id).
		Updates(map[string]any{"cancelled_at": now, "updated_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return s.Jobs.SkipPending(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// List is the operator view: newest first, filterable by type and
// mirror-sync state.
func (s *Service) List(ctx context.Context, typ string, synced *bool, limit int) ([]Transaction, error) {
	q := s.DB.WithContext(ctx).Model(&Transaction{}).Order("created_at desc")
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if synced != nil {
		q = q.Where("sheets_synced = ?", *synced)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Transaction
	err := q.Find(&out).Error
	return out, err
}

func nonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
