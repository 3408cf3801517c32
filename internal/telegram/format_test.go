package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
)

func TestKeyboardLayout(t *testing.T) {
	kb := Keyboard(flow.PropertyOptions, true)

	// 4 options two per row, then skip, then cancel.
	require.Len(t, kb.InlineKeyboard, 4)
	require.Len(t, kb.InlineKeyboard[0], 2)
	require.Len(t, kb.InlineKeyboard[1], 2)
	require.Equal(t, "prop_gnizd", kb.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "Гніздечко", kb.InlineKeyboard[0][0].Text)
	require.Equal(t, skipCallback, kb.InlineKeyboard[2][0].CallbackData)
	require.Equal(t, cancelCallback, kb.InlineKeyboard[3][0].CallbackData)
}

func TestKeyboardOddOptionsAndNoSkip(t *testing.T) {
	kb := Keyboard(flow.PaymentTypeOptions, false)

	// 3 options: a full row, a single, then cancel only.
	require.Len(t, kb.InlineKeyboard, 3)
	require.Len(t, kb.InlineKeyboard[1], 1)
	require.Equal(t, cancelCallback, kb.InlineKeyboard[2][0].CallbackData)
}

func TestCancelKeyboard(t *testing.T) {
	kb := CancelKeyboard()
	require.Len(t, kb.InlineKeyboard, 1)
	require.Equal(t, cancelCallback, kb.InlineKeyboard[0][0].CallbackData)
}

func TestFormatConfirmationWarnsOnSkippedFields(t *testing.T) {
	out := formatConfirmation(flow.RecordRequest{
		Type: "income",
		Fields: map[string]string{
			"amount":       "2400",
			"guest_name":   "Олена",
			"property":     "Гніздечко",
			"payment_type": "",
			"platform":     "Website",
			"account_type": "",
			"checkin":      "",
			"checkout":     "",
		},
	})

	require.Contains(t, out, "Дохід збережено")
	require.Contains(t, out, "💰 Сума: 2400")
	require.Contains(t, out, "💳 Тип оплати: "+skippedFieldMark)
	require.Contains(t, out, "🏦 Рахунок: "+skippedFieldMark)
	require.Contains(t, out, "📅 Дати: "+skippedFieldMark)
	require.NotContains(t, out, "🏄", "no SUP line without a duration")
}

func TestFormatConfirmationExpense(t *testing.T) {
	out := formatConfirmation(flow.RecordRequest{
		Type: "expense",
		Fields: map[string]string{
			"category":       "Laundry",
			"amount":         "850",
			"description":    "",
			"payment_method": "Cash",
			"paid_by":        "Nestor",
		},
	})

	require.Contains(t, out, "Витрату збережено")
	require.Contains(t, out, "📝 Опис: "+skippedFieldMark)
	require.NotContains(t, out, "🧾", "absent fields are omitted, not warned")
}

func TestMatchLabel(t *testing.T) {
	require.Equal(t, "Laundry", matchLabel(flow.ExpenseCategoryOptions, "laundry"))
	require.Equal(t, "Laundry", matchLabel(flow.ExpenseCategoryOptions, "Laun"))
	require.Equal(t, "Management Fee", matchLabel(flow.ExpenseCategoryOptions, "management"))
	require.Empty(t, matchLabel(flow.ExpenseCategoryOptions, "nonsense"))
	require.Empty(t, matchLabel(flow.ExpenseCategoryOptions, "  "))
}

func TestAPIErrorPermanent(t *testing.T) {
	require.True(t, (&APIError{Code: 403}).Permanent())
	require.True(t, (&APIError{Code: 400}).Permanent())
	require.False(t, (&APIError{Code: 429}).Permanent(), "rate limits are retried")
	require.False(t, (&APIError{Code: 502}).Permanent())
}
