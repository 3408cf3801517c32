package syncer

import (
	"strconv"
	"strings"
	"time"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ledger"
)

// MirrorFields maps a transaction row onto the spreadsheet layout:
// income goes to the 11-column "Доходи" tab, expenses to the 10-column
// "Витрати" tab. The tab is picked by the bridge from "sheet".
func MirrorFields(tx *ledger.Transaction) map[string]any {
	if tx.Type == ledger.TypeExpense {
		return expenseFields(tx)
	}
	return incomeFields(tx)
}

func incomeFields(tx *ledger.Transaction) map[string]any {
	return map[string]any{
		"sheet":        "Доходи",
		"date":         sheetsDate(tx.Date),
		"amount":       amountNumber(tx.Amount),
		"property":     propertyLabels(tx.Properties, flow.PropertyOptions),
		"platform":     tx.Platform,
		"guest_name":   tx.Counterparty,
		"checkin":      uaDate(tx.CheckinDate),
		"checkout":     uaDate(tx.CheckoutDate),
		"payment_type": tx.PaymentType,
		"account_type": tx.AccountType,
		"notes":        tx.Notes,
		"month":        tx.Date.Format("January 2006"),
	}
}

func expenseFields(tx *ledger.Transaction) map[string]any {
	return map[string]any{
		"sheet":          "Витрати",
		"date":           sheetsDate(tx.Date),
		"category":       tx.Category,
		"amount":         amountNumber(tx.Amount),
		"description":    tx.Description,
		"payment_method": tx.AccountType,
		"paid_by":        tx.PaidBy,
		"receipt_url":    tx.ReceiptURL,
		"vendor":         tx.Counterparty,
		"property":       propertyLabels(tx.Properties, flow.ExpensePropertyOptions),
		"notes":          tx.Notes,
	}
}

func propertyLabels(ids []string, catalog []flow.Option) string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		labels = append(labels, flow.Label(catalog, id))
	}
	return strings.Join(labels, " + ")
}

func sheetsDate(t time.Time) string {
	return t.Format("2006-01-02") + " 0:00:00"
}

func uaDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}

// amountNumber sends the amount as a number so the spreadsheet can sum
// it; unparseable values fall back to text rather than disappearing.
func amountNumber(s string) any {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return v
}
