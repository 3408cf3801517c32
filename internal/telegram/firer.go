package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/jobs"
)

// Notifier delivers scheduled guest touch points to the team chat and
// operator alerts to the owner chat. It implements jobs.Firer and the
// Alerter contracts of both background loops.
type Notifier struct {
	Client      *Client
	GroupChatID int64
	OwnerChatID int64
}

type touchpointPayload struct {
	GuestName string `json:"guest_name"`
	Property  string `json:"property"`
	Checkin   string `json:"checkin"`
	Checkout  string `json:"checkout"`
}

func (n *Notifier) Fire(ctx context.Context, job jobs.Job) (jobs.FireResult, error) {
	var p touchpointPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		// A payload we cannot read will never become readable.
		return jobs.FirePermanent, err
	}

	text := touchpointText(job.Type, p)
	if text == "" {
		return jobs.FirePermanent, errors.New("unknown job type " + job.Type)
	}

	if err := n.Client.SendMessage(ctx, n.GroupChatID, text, nil); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Permanent() {
			return jobs.FirePermanent, err
		}
		return jobs.FireTransient, err
	}
	return jobs.FireSuccess, nil
}

func (n *Notifier) Alert(ctx context.Context, msg string) {
	chatID := n.OwnerChatID
	if chatID == 0 {
		chatID = n.GroupChatID
	}
	if err := n.Client.SendMessage(ctx, chatID, msg, nil); err != nil {
		log.Printf("telegram: operator alert: %v", err)
	}
}

func touchpointText(jobType string, p touchpointPayload) string {
	guest := orDash(p.GuestName)
	prop := orDash(p.Property)

	switch jobType {
	case jobs.TypePreArrivalWeek:
		return "📆 За тиждень заїзд: " + guest + " (" + prop + ", чек-ін " + p.Checkin + "). " +
			"Надішліть гостю вітальне повідомлення та умови заїзду."
	case jobs.TypePreArrivalInfo:
		return "🔑 Післязавтра заїзд: " + guest + " (" + prop + "). " +
			"Надішліть інструкцію заселення та код від сейфа."
	case jobs.TypeCheckinDay:
		return "🏠 Сьогодні заїзд: " + guest + " (" + prop + "). Перевірте готовність об'єкта."
	case jobs.TypeWelfareCheck:
		return "💬 Гість " + guest + " (" + prop + ") заселився кілька годин тому. " +
			"Запитайте, чи все гаразд."
	case jobs.TypeReviewAsk:
		return "⭐ Тиждень після заїзду " + guest + " (" + prop + ", чек-аут " + p.Checkout + "). " +
			"Попросіть залишити відгук."
	default:
		return ""
	}
}
