// Package parse extracts structured fields from OCR text (Monobank
// screenshots, store receipts) and from free-text user input (amounts,
// stay dates).
package parse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const uaDateLayout = "02.01.2006"

var (
	senderRe  = regexp.MustCompile(`(?:Від|від|От|від кого)[:\s]+([^\n]+)`)
	amountRe  = regexp.MustCompile(`([\d\s` + " " + `]+[,.]?\d*)\s*(?:₴|грн|UAH)`)
	dateRe    = regexp.MustCompile(`(\d{2}[./]\d{2}[./]\d{4})`)
	purposeRe = regexp.MustCompile(`(?:Призначення|Коментар|Повідомлення|призначення)[:\s]+([^\n]+)`)

	checkinRe  = regexp.MustCompile(`(?i)ЧЕК-ІН[:\s]+(\d{2}\.\d{2}\.\d{4})`)
	checkoutRe = regexp.MustCompile(`(?i)ЧЕК-АУТ[:\s]+(\d{2}\.\d{2}\.\d{4})`)
	anyDateRe  = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})`)

	totalRe = regexp.MustCompile(`(?i)(?:СУМА|До сплати|Всього|РАЗОМ)[:\s]+([\d\s` + " " + `]+[,.]?\d*)`)
)

// MonobankFields is what a Monobank payment screenshot yields.
type MonobankFields struct {
	Sender  string
	Amount  string // normalized decimal string, empty if unparsed
	Date    string // DD.MM.YYYY as seen
	Purpose string
}

// Monobank pulls payment fields out of raw OCR text. Missing fields
// stay empty; the flow asks the user instead.
func Monobank(text string) MonobankFields {
	f := MonobankFields{
		Sender:  group1(senderRe, text),
		Date:    strings.TrimSpace(group1(dateRe, text)),
		Purpose: strings.TrimSpace(group1(purposeRe, text)),
	}

	if raw := group1(amountRe, text); raw != "" {
		if amt, err := Amount(raw); err == nil {
			f.Amount = amt
		}
	}

	f.Sender = strings.TrimSpace(strings.NewReplacer("Від:", "", "від:", "").Replace(f.Sender))
	return f
}

// ReceiptFields is what a store receipt photo yields: hints to
// pre-fill the expense flow, never authoritative.
type ReceiptFields struct {
	Vendor string
	Amount string
	Date   string
}

// Receipt pulls vendor, amount and date hints out of receipt OCR
// text. The vendor is taken as the first non-empty line, where fiscal
// receipts print the store name; the amount prefers a currency-tagged
// value and falls back to a total line (СУМА, До сплати, Всього).
func Receipt(text string) ReceiptFields {
	f := ReceiptFields{Date: strings.TrimSpace(group1(dateRe, text))}

	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			f.Vendor = line
			break
		}
	}

	raw := group1(amountRe, text)
	if raw == "" {
		raw = group1(totalRe, text)
	}
	if raw != "" {
		if amt, err := Amount(raw); err == nil {
			f.Amount = amt
		}
	}
	return f
}

// IsMonobank classifies OCR text: a Monobank payment screenshot starts
// the income flow, anything else is treated as an expense receipt.
func IsMonobank(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "monobank") || strings.Contains(lower, "монобанк") {
		return true
	}
	return amountRe.MatchString(text) && senderRe.MatchString(text)
}

// Amount normalizes user or OCR input like "2 400,50" to "2400.50".
// Rejects non-numeric and non-positive values.
func Amount(s string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", errors.New("невірний формат суми, введіть число, наприклад: 2400 або 1 500,50")
	}
	if v <= 0 {
		return "", errors.New("сума має бути більшою за нуль")
	}
	return cleaned, nil
}

// Dates pulls check-in/check-out from user text. Primary form is
// labelled ("ЧЕК-ІН: 22.02.2026"), fallback is the first two bare dates
// in the message.
func Dates(text string) (checkin, checkout string) {
	checkin = group1(checkinRe, text)
	checkout = group1(checkoutRe, text)

	if checkin == "" && checkout == "" {
		all := anyDateRe.FindAllString(text, -1)
		if len(all) >= 2 {
			checkin, checkout = all[0], all[1]
		} else if len(all) == 1 {
			checkin = all[0]
		}
	}
	return checkin, checkout
}

// UADate parses DD.MM.YYYY (dot or slash separated).
func UADate(s string) (time.Time, error) {
	return time.Parse(uaDateLayout, strings.ReplaceAll(strings.TrimSpace(s), "/", "."))
}

// SheetsDate converts DD.MM.YYYY to the "YYYY-MM-DD 0:00:00" form the
// spreadsheet's Date column expects. Unparseable input passes through.
func SheetsDate(s string) string {
	t, err := UADate(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02") + " 0:00:00"
}

// MonthLabel converts DD.MM.YYYY to "February 2026" for the Month column.
func MonthLabel(s string) string {
	t, err := UADate(s)
	if err != nil {
		return ""
	}
	return t.Format("January 2006")
}

func group1(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
