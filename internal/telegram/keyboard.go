package telegram

import "github.com/ndanchak/vyriy-income-expense-bot/internal/flow"

const (
	cancelCallback = "cancel"
	skipCallback   = "skip"
)

// Keyboard renders a step's choice set two buttons per row, with skip
// and cancel rows appended as appropriate.
func Keyboard(opts []flow.Option, skippable bool) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton

	var row []InlineKeyboardButton
	for _, o := range opts {
		row = append(row, InlineKeyboardButton{Text: o.Label, CallbackData: o.ID})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if skippable {
		rows = append(rows, []InlineKeyboardButton{
			{Text: "⏭ Пропустити", CallbackData: skipCallback},
		})
	}
	rows = append(rows, []InlineKeyboardButton{
		{Text: "❌ Скасувати", CallbackData: cancelCallback},
	})

	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CancelKeyboard is shown on free-text prompts that cannot be skipped.
func CancelKeyboard() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "❌ Скасувати", CallbackData: cancelCallback}},
	}}
}
