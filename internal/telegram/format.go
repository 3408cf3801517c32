package telegram

import (
	"strings"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/parse"
)

const (
	msgCancelled     = "❌ Операцію скасовано."
	msgActiveFlow    = "⚠️ У вас вже є активна операція. Завершіть її або натисніть /cancel"
	msgOCRFailed     = "⚠️ Не вдалося розпізнати текст на зображенні. Спробуйте ще раз або введіть дані вручну (/income)."
	msgSaveFailed    = "❌ Помилка збереження. Спробуйте ще раз."
	msgPhotoInFlow   = "⚠️ Фото тут не очікується. Завершіть поточну операцію або натисніть /cancel"

	msgReceiptUploadOff = "⚠️ Пряме завантаження фото тимчасово недоступне.\n" +
		"Завантажте чек на Google Drive та надішліть посилання, або натисніть Пропустити."
	msgReceiptUploadFailed = "⚠️ Не вдалося завантажити фото чека.\n" +
		"Надішліть посилання на чек, або натисніть Пропустити."
	skippedFieldMark = "⚠️ пропущено"
)

const msgStart = "🏠 *Vyriy House Bot*\n\n" +
	"Доступні команди:\n" +
	"📸 Надішліть скріншот Monobank — автоматичний запис доходу\n" +
	"💰 /income — ручне введення доходу\n" +
	"💸 /expense — запис витрати\n" +
	"❌ /cancel — скасувати поточну операцію\n" +
	"❓ /help — довідка"

const msgHelp = "📖 *Довідка*\n\n" +
	"*Запис доходу (скріншот):*\n" +
	"Надішліть фото з Monobank → бот розпізнає суму, відправника, дату → " +
	"запитає об'єкт, тип оплати, платформу, дати.\n\n" +
	"*Запис доходу (вручну):*\n" +
	"/income → бот запитає суму, ім'я гостя, об'єкт, тип оплати, платформу, дати.\n\n" +
	"*Запис витрати:*\n" +
	"/expense → категорія, сума, опис, спосіб оплати, хто оплатив, чек.\n" +
	"Швидкий: `/expense Category;Amount;Description;Paid By`\n\n" +
	"*Скасування:*\n" +
	"/cancel — на будь-якому кроці скасує поточну операцію.\n\n" +
	"Дані зберігаються в базу даних та дублюються в Google Sheets."

func formatOCRSummary(f parse.MonobankFields) string {
	var b strings.Builder
	b.WriteString("🏦 *Розпізнано платіж Monobank*\n")
	b.WriteString("💰 Сума: " + orDash(f.Amount) + " ₴\n")
	b.WriteString("👤 Від: " + orDash(f.Sender) + "\n")
	b.WriteString("📅 Дата: " + orDash(f.Date) + "\n")
	if f.Purpose != "" {
		b.WriteString("💬 Призначення: " + f.Purpose + "\n")
	}
	return b.String()
}

// formatConfirmation echoes a saved record field by field; explicitly
// skipped fields are surfaced with a warning, never silently dropped.
func formatConfirmation(rec flow.RecordRequest) string {
	f := rec.Fields
	var b strings.Builder

	if rec.Type == "expense" {
		b.WriteString("✅ *Витрату збережено*\n")
		writeField(&b, "📂 Категорія", f, "category")
		writeField(&b, "💸 Сума", f, "amount")
		writeField(&b, "📝 Опис", f, "description")
		writeField(&b, "💳 Спосіб оплати", f, "payment_method")
		writeField(&b, "👤 Оплатив", f, "paid_by")
		writeField(&b, "🏠 Об'єкт", f, "property")
		writeField(&b, "🧾 Чек", f, "receipt_url")
		return b.String()
	}

	b.WriteString("✅ *Дохід збережено*\n")
	writeField(&b, "💰 Сума", f, "amount")
	writeField(&b, "👤 Гість", f, "guest_name")
	writeField(&b, "🏠 Об'єкт", f, "property")
	writeField(&b, "💳 Тип оплати", f, "payment_type")
	writeField(&b, "🌐 Платформа", f, "platform")
	writeField(&b, "🏦 Рахунок", f, "account_type")
	if f["sup_duration"] != "" {
		writeField(&b, "🏄 Тривалість", f, "sup_duration")
	}
	if f["checkin"] != "" || f["checkout"] != "" {
		b.WriteString("📅 Дати: " + orDash(f["checkin"]) + " → " + orDash(f["checkout"]) + "\n")
	} else {
		b.WriteString("📅 Дати: " + skippedFieldMark + "\n")
	}
	return b.String()
}

func writeField(b *strings.Builder, label string, fields map[string]string, key string) {
	v, present := fields[key]
	if !present {
		return
	}
	if v == "" {
		b.WriteString(label + ": " + skippedFieldMark + "\n")
		return
	}
	b.WriteString(label + ": " + v + "\n")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
