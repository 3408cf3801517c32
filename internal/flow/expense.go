package flow

import "github.com/ndanchak/vyriy-income-expense-bot/internal/parse"

// ExpenseFlow covers both interactive entry (/expense) and
// receipt-seeded entry: a receipt photo pre-fills vendor/amount into
// the seed context and the same steps run from the top.
func ExpenseFlow() Flow {
	steps := map[string]Step{}

	steps["awaiting_category"] = Step{
		ID:     "awaiting_category",
		Field:  "category",
		Prompt: "📂 Оберіть категорію витрати:",
		Contract: Contract{
			Options: ExpenseCategoryOptions,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_amount",
				Patch: map[string]string{"category": in.Value},
			}
		},
	}

	steps["awaiting_amount"] = Step{
		ID:     "awaiting_amount",
		Field:  "amount",
		Prompt: "💸 Введіть суму витрати:",
		Contract: Contract{
			Validate: parse.Amount,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_description",
				Patch: map[string]string{"amount": in.Value},
			}
		},
	}

	steps["awaiting_description"] = Step{
		ID:     "awaiting_description",
		Field:  "description",
		Prompt: "📝 Опишіть витрату:",
		Contract: Contract{
			Validate:  requireText("введіть опис текстом або пропустіть"),
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindText {
				patch["description"] = in.Value
			}
			return Transition{Next: "awaiting_payment_method", Patch: patch}
		},
	}

	steps["awaiting_payment_method"] = Step{
		ID:     "awaiting_payment_method",
		Field:  "payment_method",
		Prompt: "💳 Спосіб оплати:",
		Contract: Contract{
			Options: PaymentMethodOptions,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_paid_by",
				Patch: map[string]string{"payment_method": in.Value},
			}
		},
	}

	steps["awaiting_paid_by"] = Step{
		ID:     "awaiting_paid_by",
		Field:  "paid_by",
		Prompt: "👤 Хто оплатив:",
		Contract: Contract{
			Options: PaidByOptions,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_property",
				Patch: map[string]string{"paid_by": in.Value},
			}
		},
	}

	steps["awaiting_property"] = Step{
		ID:     "awaiting_property",
		Field:  "property",
		Prompt: "🏠 До якого об'єкта відноситься витрата?",
		Contract: Contract{
			Options:   ExpensePropertyOptions,
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindChoice {
				patch["property"] = in.Value
			}
			return Transition{Next: "awaiting_receipt", Patch: patch}
		},
	}

	steps["awaiting_receipt"] = Step{
		ID:     "awaiting_receipt",
		Field:  "receipt_url",
		Prompt: "🧾 Надішліть фото чека, посилання на нього, або пропустіть:",
		Contract: Contract{
			Validate:     requireText("надішліть фото чи посилання, або пропустіть"),
			Skippable:    true,
			AcceptsPhoto: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindText || in.Kind == KindPhoto {
				patch["receipt_url"] = in.Value
			}
			merged := overlay(ctx, patch)
			return Transition{
				Patch:  patch,
				Action: &Action{Record: expenseRecord(merged)},
			}
		},
	}

	return Flow{Name: "expense", First: "awaiting_category", Steps: steps}
}

func expenseRecord(ctx map[string]string) RecordRequest {
	fields := map[string]string{
		"amount":         ctx["amount"],
		"date":           ctx["date"],
		"category":       Label(ExpenseCategoryOptions, ctx["category"]),
		"description":    ctx["description"],
		"payment_method": Label(PaymentMethodOptions, ctx["payment_method"]),
		"paid_by":        Label(PaidByOptions, ctx["paid_by"]),
		"property_id":    ctx["property"],
		"property":       Label(ExpensePropertyOptions, ctx["property"]),
		"vendor":         ctx["vendor"],
		"receipt_url":    ctx["receipt_url"],
		"notes":          ctx["notes"],
		"source":         ctx["source"],
	}
	return RecordRequest{Type: "expense", Fields: fields}
}
