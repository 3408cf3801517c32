package telegram

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/drive"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ocr"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/parse"
)

const maxUpdateBytes = 1 << 20 // Telegram updates are well under 100 KB

// Handler is the inbound adapter: one Telegram update becomes at most
// one engine input. Duplicate deliveries die on the session CAS, so no
// dedup bookkeeping happens here.
type Handler struct {
	Engine   *flow.Engine
	Recorder flow.Recorder
	Client   *Client
	OCR      ocr.Extractor

	// Drive stores receipt photos; nil disables uploads and the user
	// is asked for a link instead.
	Drive drive.Uploader

	Secret  string
	Allowed map[int64]bool
}

func NewHandler(engine *flow.Engine, recorder flow.Recorder, client *Client, extractor ocr.Extractor, uploader drive.Uploader, secret string, allowedChats []int64) *Handler {
	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}
	return &Handler{
		Engine:   engine,
		Recorder: recorder,
		Client:   client,
		OCR:      extractor,
		Drive:    uploader,
		Secret:   secret,
		Allowed:  allowed,
	}
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.Secret == "" {
		log.Printf("telegram: webhook secret not configured, rejecting")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	secret := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if !hmac.Equal([]byte(secret), []byte(h.Secret)) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes+1))
	if err != nil || len(body) > maxUpdateBytes {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Telegram retries non-200 answers; process errors are logged and
	// swallowed so a flaky collaborator does not replay the update.
	if err := h.process(r.Context(), &upd); err != nil {
		log.Printf("telegram: process update %d: %v", upd.UpdateID, err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, upd *Update) error {
	switch {
	case upd.CallbackQuery != nil:
		return h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		return h.handleMessage(ctx, upd.Message)
	default:
		return nil
	}
}

func (h *Handler) authorized(chatID int64) bool {
	return len(h.Allowed) == 0 || h.Allowed[chatID]
}

func (h *Handler) handleMessage(ctx context.Context, msg *Message) error {
	chatID := msg.Chat.ID
	if !h.authorized(chatID) {
		log.Printf("telegram: unauthorized chat %d", chatID)
		return nil
	}
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		return h.Client.SendMessage(ctx, chatID, msgStart, nil)
	case strings.HasPrefix(text, "/help"):
		return h.Client.SendMessage(ctx, chatID, msgHelp, nil)
	case strings.HasPrefix(text, "/cancel"):
		return h.drive(ctx, chatID, flow.Input{Kind: flow.KindCancel}, nil)
	case strings.HasPrefix(text, "/income"):
		return h.startFlow(ctx, chatID, userID, "income_manual", map[string]string{
			"source": "manual",
			"date":   time.Now().Format("02.01.2006"),
		})
	case strings.HasPrefix(text, "/expense"):
		if args, ok := strings.CutPrefix(text, "/expense"); ok && strings.Contains(args, ";") {
			return h.fastExpense(ctx, chatID, strings.TrimSpace(args))
		}
		return h.startFlow(ctx, chatID, userID, "expense", map[string]string{"source": "manual"})
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, chatID, userID, msg)
	case text != "":
		return h.drive(ctx, chatID, flow.Input{Kind: flow.KindText, Value: text}, nil)
	default:
		return nil
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *CallbackQuery) error {
	if cb.Message == nil {
		return h.Client.AnswerCallbackQuery(ctx, cb.ID, "")
	}
	chatID := cb.Message.Chat.ID
	if !h.authorized(chatID) {
		return h.Client.AnswerCallbackQuery(ctx, cb.ID, "")
	}

	var in flow.Input
	switch cb.Data {
	case cancelCallback:
		in = flow.Input{Kind: flow.KindCancel}
	case skipCallback:
		in = flow.Input{Kind: flow.KindSkip}
	default:
		in = flow.Input{Kind: flow.KindChoice, Value: cb.Data}
	}

	if err := h.Client.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		log.Printf("telegram: answer callback: %v", err)
	}
	return h.drive(ctx, chatID, in, cb.Message)
}

// drive feeds one input to the engine and renders the outcome. edited
// is the keyboard message to rewrite in place for button presses; nil
// means plain replies.
func (h *Handler) drive(ctx context.Context, chatID int64, in flow.Input, edited *Message) error {
	reply, err := h.Engine.Handle(ctx, chatID, in)
	switch {
	case errors.Is(err, flow.ErrIdle):
		if in.Kind == flow.KindText {
			return nil // stray text outside a flow
		}
		return h.respond(ctx, chatID, edited, "Немає активної операції. Надішліть скріншот або команду.", nil)
	case errors.Is(err, flow.ErrStale):
		return nil // duplicate or lost race, already handled elsewhere
	case err != nil:
		respErr := h.respond(ctx, chatID, edited, msgSaveFailed, nil)
		if respErr != nil {
			log.Printf("telegram: error notice: %v", respErr)
		}
		return err
	}
	return h.render(ctx, chatID, edited, reply)
}

func (h *Handler) startFlow(ctx context.Context, chatID, userID int64, name string, seed map[string]string) error {
	reply, err := h.Engine.Start(ctx, chatID, userID, name, seed)
	if errors.Is(err, flow.ErrActive) {
		return h.Client.SendMessage(ctx, chatID, msgActiveFlow, nil)
	}
	if err != nil {
		return err
	}
	return h.render(ctx, chatID, nil, reply)
}

func (h *Handler) render(ctx context.Context, chatID int64, edited *Message, reply *flow.Reply) error {
	switch {
	case reply.Cancelled:
		return h.respond(ctx, chatID, edited, msgCancelled, nil)
	case reply.Done && reply.ValidationMsg != "":
		return h.respond(ctx, chatID, edited, "❌ "+reply.ValidationMsg, nil)
	case reply.Done:
		return h.respond(ctx, chatID, edited, formatConfirmation(reply.Record), nil)
	}

	text := reply.Prompt
	if reply.ValidationMsg != "" {
		text = "⚠️ " + reply.ValidationMsg + "\n\n" + text
	}
	var kb *InlineKeyboardMarkup
	if len(reply.Options) > 0 {
		kb = Keyboard(reply.Options, reply.Skippable)
	} else if reply.Skippable {
		kb = Keyboard(nil, true)
	} else {
		kb = CancelKeyboard()
	}
	return h.respond(ctx, chatID, edited, text, kb)
}

func (h *Handler) respond(ctx context.Context, chatID int64, edited *Message, text string, kb *InlineKeyboardMarkup) error {
	if edited != nil {
		return h.Client.EditMessageText(ctx, chatID, edited.MessageID, text, kb)
	}
	return h.Client.SendMessage(ctx, chatID, text, kb)
}

// handlePhoto routes an inbound photo. A step waiting on a photo
// (the expense receipt) gets it uploaded and fed in as a link; an
// idle chat's photo is classified by its OCR text, Monobank
// screenshots seeding the income flow and everything else the
// expense flow.
func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, msg *Message) error {
	awaits, err := h.Engine.AwaitsPhoto(ctx, chatID)
	if err != nil {
		return err
	}
	if awaits {
		return h.receiptPhoto(ctx, chatID, msg)
	}

	// Largest rendition is last.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	image, err := h.Client.DownloadFile(ctx, fileID)
	if err != nil {
		return err
	}

	text, err := h.OCR.Extract(ctx, image)
	if err != nil {
		log.Printf("telegram: ocr: %v", err)
		return h.Client.SendMessage(ctx, chatID, msgOCRFailed, nil)
	}
	if strings.TrimSpace(text) == "" {
		return h.Client.SendMessage(ctx, chatID, msgOCRFailed, nil)
	}

	if parse.IsMonobank(text) {
		f := parse.Monobank(text)
		seed := map[string]string{
			"source":      "ocr",
			"ocr_sender":  f.Sender,
			"ocr_amount":  f.Amount,
			"ocr_date":    f.Date,
			"ocr_purpose": f.Purpose,
		}
		reply, err := h.Engine.Start(ctx, chatID, userID, "income", seed)
		if errors.Is(err, flow.ErrActive) {
			return h.Client.SendMessage(ctx, chatID, msgPhotoInFlow, nil)
		}
		if err != nil {
			return err
		}
		if err := h.Client.SendMessage(ctx, chatID, formatOCRSummary(f), nil); err != nil {
			log.Printf("telegram: ocr summary: %v", err)
		}
		return h.render(ctx, chatID, nil, reply)
	}

	// Receipt: seed the expense flow with whatever the OCR gave us.
	r := parse.Receipt(text)
	seed := map[string]string{"source": "ocr"}
	if r.Amount != "" {
		seed["amount"] = r.Amount
	}
	if r.Vendor != "" {
		seed["vendor"] = r.Vendor
	}
	if r.Date != "" {
		seed["date"] = r.Date
	}
	reply, err := h.Engine.Start(ctx, chatID, userID, "expense", seed)
	if errors.Is(err, flow.ErrActive) {
		return h.Client.SendMessage(ctx, chatID, msgPhotoInFlow, nil)
	}
	if err != nil {
		return err
	}
	return h.render(ctx, chatID, nil, reply)
}

// receiptPhoto uploads a photo sent at the receipt step and feeds the
// resulting link to the engine as the step's value.
func (h *Handler) receiptPhoto(ctx context.Context, chatID int64, msg *Message) error {
	if h.Drive == nil {
		return h.Client.SendMessage(ctx, chatID, msgReceiptUploadOff, nil)
	}

	image, err := h.Client.DownloadFile(ctx, msg.Photo[len(msg.Photo)-1].FileID)
	if err != nil {
		return err
	}
	link, err := h.Drive.Upload(ctx, image)
	if err != nil {
		log.Printf("telegram: receipt upload: %v", err)
		return h.Client.SendMessage(ctx, chatID, msgReceiptUploadFailed, nil)
	}
	return h.drive(ctx, chatID, flow.Input{Kind: flow.KindPhoto, Value: link}, nil)
}

// fastExpense handles `/expense Category;Amount;Description;Paid By`
// without touching the session machinery: one message, one record.
func (h *Handler) fastExpense(ctx context.Context, chatID int64, args string) error {
	parts := strings.Split(args, ";")
	if len(parts) < 2 {
		return h.Client.SendMessage(ctx, chatID,
			"Формат: `/expense Категорія;Сума;Опис;Хто оплатив`", nil)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	category := matchLabel(flow.ExpenseCategoryOptions, parts[0])
	if category == "" {
		return h.Client.SendMessage(ctx, chatID, "⚠️ Невідома категорія: "+parts[0], nil)
	}
	amount, err := parse.Amount(parts[1])
	if err != nil {
		return h.Client.SendMessage(ctx, chatID, "⚠️ "+err.Error(), nil)
	}

	fields := map[string]string{
		"category": category,
		"amount":   amount,
		"source":   "manual",
	}
	if len(parts) > 2 {
		fields["description"] = parts[2]
	}
	if len(parts) > 3 {
		fields["paid_by"] = matchLabel(flow.PaidByOptions, parts[3])
	}

	_, err = h.Recorder.CreateRecord(ctx, flow.RecordRequest{Type: "expense", Fields: fields})
	var vErr *flow.ValidationError
	if errors.As(err, &vErr) {
		return h.Client.SendMessage(ctx, chatID, "❌ "+vErr.Msg, nil)
	}
	if err != nil {
		sendErr := h.Client.SendMessage(ctx, chatID, msgSaveFailed, nil)
		if sendErr != nil {
			log.Printf("telegram: error notice: %v", sendErr)
		}
		return err
	}
	return h.Client.SendMessage(ctx, chatID,
		formatConfirmation(flow.RecordRequest{Type: "expense", Fields: fields}), nil)
}

// matchLabel resolves case-insensitive label input (full or prefix) to
// the catalog label.
func matchLabel(opts []flow.Option, input string) string {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return ""
	}
	for _, o := range opts {
		l := strings.ToLower(o.Label)
		if l == needle || strings.HasPrefix(l, needle) {
			return o.Label
		}
	}
	return ""
}
