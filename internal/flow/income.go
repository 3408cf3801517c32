package flow

import (
	"strings"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/parse"
)

// Two income flows share one step table: "income" is seeded from a
// Monobank screenshot and starts at the property question,
// "income_manual" starts by asking amount and guest name. Branches:
// SUP rentals replace payment/account questions with a duration
// question, and the dates step is the terminal one.

func IncomeFlow() Flow {
	return Flow{Name: "income", First: "awaiting_property", Steps: incomeSteps()}
}

func IncomeManualFlow() Flow {
	steps := incomeSteps()
	steps["awaiting_amount"] = Step{
		ID:     "awaiting_amount",
		Field:  "amount",
		Prompt: "💰 Введіть суму доходу (наприклад: 2400 або 1 500,50):",
		Contract: Contract{
			Validate: parse.Amount,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_guest_name",
				Patch: map[string]string{"amount": in.Value},
			}
		},
	}
	steps["awaiting_guest_name"] = Step{
		ID:     "awaiting_guest_name",
		Field:  "guest_name",
		Prompt: "👤 Введіть ім'я гостя:",
		Contract: Contract{
			Validate: requireText("введіть ім'я гостя текстом"),
		},
		Next: func(in Input, ctx map[string]string) Transition {
			return Transition{
				Next:  "awaiting_property",
				Patch: map[string]string{"guest_name": in.Value},
			}
		},
	}
	return Flow{Name: "income_manual", First: "awaiting_amount", Steps: steps}
}

func incomeSteps() map[string]Step {
	steps := map[string]Step{}

	steps["awaiting_property"] = Step{
		ID:     "awaiting_property",
		Field:  "property",
		Prompt: "🏠 Оберіть об'єкт:",
		Contract: Contract{
			Options:   PropertyOptions,
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			if in.Kind == KindChoice && in.Value == "prop_sup" {
				return Transition{
					Next:  "awaiting_sup_duration",
					Patch: map[string]string{"property": in.Value},
				}
			}
			patch := map[string]string{}
			if in.Kind == KindChoice {
				patch["property"] = in.Value
			}
			return Transition{Next: "awaiting_payment_type", Patch: patch}
		},
	}

	steps["awaiting_sup_duration"] = Step{
		ID:     "awaiting_sup_duration",
		Field:  "sup_duration",
		Prompt: "🏄 Оберіть тривалість прокату:",
		Contract: Contract{
			Options: SupDurationOptions,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			// SUP short-circuits the payment and account questions:
			// payment type is fixed and the account is inferred from
			// the payment purpose text.
			account := "acc_account"
			if strings.Contains(strings.ToLower(ctx["ocr_purpose"]), "готівка") {
				account = "acc_cash"
			}
			return Transition{
				Next: "awaiting_platform",
				Patch: map[string]string{
					"sup_duration": in.Value,
					"payment_type": "Сапи",
					"account_type": account,
				},
			}
		},
	}

	steps["awaiting_payment_type"] = Step{
		ID:     "awaiting_payment_type",
		Field:  "payment_type",
		Prompt: "💳 Оберіть тип оплати:",
		Contract: Contract{
			Options:   PaymentTypeOptions,
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindChoice {
				patch["payment_type"] = in.Value
			}
			return Transition{Next: "awaiting_platform", Patch: patch}
		},
	}

	steps["awaiting_platform"] = Step{
		ID:     "awaiting_platform",
		Field:  "platform",
		Prompt: "🌐 Оберіть платформу бронювання:",
		Contract: Contract{
			Options:   PlatformOptions,
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindChoice {
				patch["platform"] = in.Value
			}
			if ctx["property"] == "prop_sup" {
				return Transition{Next: "awaiting_dates", Patch: patch}
			}
			return Transition{Next: "awaiting_account_type", Patch: patch}
		},
	}

	steps["awaiting_account_type"] = Step{
		ID:     "awaiting_account_type",
		Field:  "account_type",
		Prompt: "🏦 Оберіть рахунок:",
		Contract: Contract{
			Options:   AccountTypeOptions,
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindChoice {
				patch["account_type"] = in.Value
			}
			return Transition{Next: "awaiting_dates", Patch: patch}
		},
	}

	steps["awaiting_dates"] = Step{
		ID:     "awaiting_dates",
		Field:  "dates",
		Prompt: "📅 Введіть дати проживання:\nЧЕК-ІН: 22.02.2026\nЧЕК-АУТ: 25.02.2026",
		Contract: Contract{
			Validate:  requireText("введіть дати текстом або пропустіть"),
			Skippable: true,
		},
		Next: func(in Input, ctx map[string]string) Transition {
			patch := map[string]string{}
			if in.Kind == KindText {
				checkin, checkout := parse.Dates(in.Value)
				patch["dates"] = in.Value
				patch["checkin"] = checkin
				patch["checkout"] = checkout
			}
			merged := overlay(ctx, patch)
			return Transition{
				Patch:  patch,
				Action: &Action{Record: incomeRecord(merged)},
			}
		},
	}

	return steps
}

// incomeRecord resolves collected callback ids into the labels the
// business record stores. Skipped fields come through explicitly empty
// and stay that way.
func incomeRecord(ctx map[string]string) RecordRequest {
	amount := ctx["amount"]
	if amount == "" {
		amount = ctx["ocr_amount"]
	}
	date := ctx["date"]
	if date == "" {
		date = ctx["ocr_date"]
	}
	guest := ctx["guest_name"]
	if guest == "" {
		guest = ctx["ocr_sender"]
	}

	isSup := ctx["property"] == "prop_sup"
	payment := ctx["payment_type"]
	if !isSup {
		payment = Label(PaymentTypeOptions, payment)
	}

	notes := ctx["notes"]
	if isSup && ctx["sup_duration"] != "" {
		notes = "Тривалість: " + Label(SupDurationOptions, ctx["sup_duration"])
	} else if notes == "" {
		notes = ctx["ocr_purpose"]
	}

	fields := map[string]string{
		"amount":       amount,
		"date":         date,
		"guest_name":   guest,
		"property_id":  ctx["property"],
		"property":     Label(PropertyOptions, ctx["property"]),
		"payment_type": payment,
		"platform":     Label(PlatformOptions, ctx["platform"]),
		"account_type": Label(AccountTypeOptions, ctx["account_type"]),
		"sup_duration": Label(SupDurationOptions, ctx["sup_duration"]),
		"checkin":      ctx["checkin"],
		"checkout":     ctx["checkout"],
		"dates":        ctx["dates"],
		"notes":        notes,
		"source":       ctx["source"],
	}
	return RecordRequest{Type: "income", Fields: fields}
}

func requireText(msg string) func(string) (string, error) {
	return func(s string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", &ValidationError{Msg: msg}
		}
		return s, nil
	}
}

func overlay(base, patch map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
