package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/session"
)

const testSecret = "hook-secret"

// fakeAPI stands in for the Bot API and records outbound calls.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	sent     []map[string]any // sendMessage payloads
	edited   []map[string]any // editMessageText payloads
	answered int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			w.Write([]byte("image-bytes"))
			return
		}

		var params map[string]any
		_ = json.NewDecoder(r.Body).Decode(&params)

		f.mu.Lock()
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		switch method {
		case "sendMessage":
			f.sent = append(f.sent, params)
		case "editMessageText":
			f.edited = append(f.edited, params)
		case "answerCallbackQuery":
			f.answered++
		}
		f.mu.Unlock()

		if method == "getFile" {
			w.Write([]byte(`{"ok":true,"result":{"file_path":"photos/p.jpg"}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client() *Client {
	c := NewClient("test-token")
	c.BaseURL = f.srv.URL
	return c
}

func (f *fakeAPI) lastSentText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	text, _ := f.sent[len(f.sent)-1]["text"].(string)
	return text
}

type captureRecorder struct {
	requests []flow.RecordRequest
}

func (r *captureRecorder) CreateRecord(ctx context.Context, req flow.RecordRequest) (string, error) {
	r.requests = append(r.requests, req)
	return "rec-1", nil
}

type staticOCR struct {
	text string
	err  error
}

func (o staticOCR) Extract(ctx context.Context, image []byte) (string, error) {
	return o.text, o.err
}

func newTestHandler(t *testing.T, api *fakeAPI, ocrText string) (*Handler, *captureRecorder) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&session.Session{}))

	rec := &captureRecorder{}
	engine := flow.NewEngine(session.NewStore(gdb), rec,
		flow.IncomeFlow(), flow.IncomeManualFlow(), flow.ExpenseFlow())

	h := NewHandler(engine, rec, api.client(), staticOCR{text: ocrText}, nil, testSecret, []int64{100})
	return h, rec
}

type fakeUploader struct {
	link   string
	err    error
	images [][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, image []byte) (string, error) {
	u.images = append(u.images, image)
	return u.link, u.err
}

func postUpdate(t *testing.T, h *Handler, secret string, upd Update) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(upd)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	w := httptest.NewRecorder()
	h.Webhook(w, req)
	return w
}

func textUpdate(chatID int64, text string) Update {
	return Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 10,
			From:      &User{ID: chatID},
			Chat:      Chat{ID: chatID},
			Text:      text,
		},
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	w := postUpdate(t, h, "wrong", textUpdate(100, "/start"))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, api.sent)
}

func TestWebhookRejectsWhenSecretUnset(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")
	h.Secret = ""

	w := postUpdate(t, h, "", textUpdate(100, "/start"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStartCommand(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	w := postUpdate(t, h, testSecret, textUpdate(100, "/start"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, api.lastSentText(t), "Vyriy House Bot")
}

func TestUnauthorizedChatIsIgnored(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	w := postUpdate(t, h, testSecret, textUpdate(999, "/start"))
	require.Equal(t, http.StatusOK, w.Code, "Telegram must not retry unauthorized updates")
	require.Empty(t, api.sent)
}

func TestStrayTextOutsideFlowIsIgnored(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	w := postUpdate(t, h, testSecret, textUpdate(100, "просто текст"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, api.sent)
}

func TestIncomeCommandWalksFlowViaButtons(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	postUpdate(t, h, testSecret, textUpdate(100, "/income"))
	require.Contains(t, api.lastSentText(t), "суму")

	// Starting again mid-flow is refused.
	postUpdate(t, h, testSecret, textUpdate(100, "/income"))
	require.Contains(t, api.lastSentText(t), "активна операція")

	// Answer the amount, then press a property button.
	postUpdate(t, h, testSecret, textUpdate(100, "2400"))
	postUpdate(t, h, testSecret, textUpdate(100, "Олена"))
	require.Contains(t, api.lastSentText(t), "об'єкт")

	w := postUpdate(t, h, testSecret, Update{
		UpdateID: 2,
		CallbackQuery: &CallbackQuery{
			ID:      "cb1",
			Data:    "prop_gnizd",
			Message: &Message{MessageID: 11, Chat: Chat{ID: 100}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, api.answered)
	require.NotEmpty(t, api.edited, "button presses rewrite the keyboard message in place")
	last := api.edited[len(api.edited)-1]
	require.Contains(t, last["text"], "тип оплати")
}

func TestCancelCommand(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "")

	postUpdate(t, h, testSecret, textUpdate(100, "/expense"))
	postUpdate(t, h, testSecret, textUpdate(100, "/cancel"))
	require.Contains(t, api.lastSentText(t), "скасовано")
}

func TestFastExpenseCreatesRecordDirectly(t *testing.T) {
	api := newFakeAPI(t)
	h, rec := newTestHandler(t, api, "")

	w := postUpdate(t, h, testSecret, textUpdate(100, "/expense Laundry;850;прання рушників;Nestor"))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, rec.requests, 1)
	req := rec.requests[0]
	require.Equal(t, "expense", req.Type)
	require.Equal(t, "Laundry", req.Fields["category"])
	require.Equal(t, "850", req.Fields["amount"])
	require.Equal(t, "Nestor", req.Fields["paid_by"])

	require.Contains(t, api.lastSentText(t), "Витрату збережено")
}

func TestFastExpenseRejectsUnknownCategory(t *testing.T) {
	api := newFakeAPI(t)
	h, rec := newTestHandler(t, api, "")

	postUpdate(t, h, testSecret, textUpdate(100, "/expense Невідоме;850"))
	require.Empty(t, rec.requests)
	require.Contains(t, api.lastSentText(t), "Невідома категорія")
}

func TestMonobankPhotoSeedsIncomeFlow(t *testing.T) {
	ocrText := "monobank\nВід: Олена\n2400 ₴\n20.08.2026\nПризначення: передоплата"
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, ocrText)

	upd := Update{
		UpdateID: 3,
		Message: &Message{
			MessageID: 12,
			From:      &User{ID: 100},
			Chat:      Chat{ID: 100},
			Photo:     []PhotoSize{{FileID: "small"}, {FileID: "large"}},
		},
	}
	w := postUpdate(t, h, testSecret, upd)
	require.Equal(t, http.StatusOK, w.Code)

	api.mu.Lock()
	texts := make([]string, 0, len(api.sent))
	for _, p := range api.sent {
		s, _ := p["text"].(string)
		texts = append(texts, s)
	}
	api.mu.Unlock()

	require.Len(t, texts, 2, "OCR summary then the first prompt")
	require.Contains(t, texts[0], "Розпізнано платіж Monobank")
	require.Contains(t, texts[0], "2400")
	require.Contains(t, texts[1], "об'єкт")
}

func photoUpdate(chatID int64) Update {
	return Update{
		UpdateID: 4,
		Message: &Message{
			MessageID: 13,
			From:      &User{ID: chatID},
			Chat:      Chat{ID: chatID},
			Photo:     []PhotoSize{{FileID: "f1"}},
		},
	}
}

func callbackUpdate(chatID int64, data string) Update {
	return Update{
		UpdateID: 6,
		CallbackQuery: &CallbackQuery{
			ID:      "cb-" + data,
			Data:    data,
			Message: &Message{MessageID: 11, Chat: Chat{ID: chatID}},
		},
	}
}

func TestReceiptPhotoSeedsExpenseFlow(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "ТОВ Епіцентр\nКасовий чек\n21.08.2026\nСУМА 850.00")

	postUpdate(t, h, testSecret, photoUpdate(100))
	require.Contains(t, api.lastSentText(t), "категорію")

	sess, err := h.Engine.Sessions.Load(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, sess)
	vals := sess.Values()
	require.Equal(t, "ocr", vals["source"])
	require.Equal(t, "ТОВ Епіцентр", vals["vendor"])
	require.Equal(t, "850.00", vals["amount"])
	require.Equal(t, "21.08.2026", vals["date"])
}

func TestReceiptStepPhotoUploadsToDrive(t *testing.T) {
	api := newFakeAPI(t)
	h, rec := newTestHandler(t, api, "")
	up := &fakeUploader{link: "https://drive.google.com/file/d/abc/view"}
	h.Drive = up

	postUpdate(t, h, testSecret, textUpdate(100, "/expense"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "exp_laundry"))
	postUpdate(t, h, testSecret, textUpdate(100, "850"))
	postUpdate(t, h, testSecret, textUpdate(100, "прання рушників"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "method_cash"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "paidby_nestor"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "prop_gnizd"))

	api.mu.Lock()
	require.NotEmpty(t, api.edited)
	require.Contains(t, api.edited[len(api.edited)-1]["text"], "чека")
	api.mu.Unlock()

	postUpdate(t, h, testSecret, photoUpdate(100))

	require.Len(t, up.images, 1, "the photo bytes go to the bridge")
	require.Len(t, rec.requests, 1)
	require.Equal(t, up.link, rec.requests[0].Fields["receipt_url"])

	sess, err := h.Engine.Sessions.Load(context.Background(), 100)
	require.NoError(t, err)
	require.Nil(t, sess, "the flow finalizes on the uploaded link")
}

func TestReceiptStepPhotoWithoutDriveAsksForLink(t *testing.T) {
	api := newFakeAPI(t)
	h, rec := newTestHandler(t, api, "")

	postUpdate(t, h, testSecret, textUpdate(100, "/expense"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "exp_laundry"))
	postUpdate(t, h, testSecret, textUpdate(100, "850"))
	postUpdate(t, h, testSecret, textUpdate(100, "прання"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "method_cash"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "paidby_nestor"))
	postUpdate(t, h, testSecret, callbackUpdate(100, "prop_gnizd"))

	postUpdate(t, h, testSecret, photoUpdate(100))
	require.Contains(t, api.lastSentText(t), "посилання")
	require.Empty(t, rec.requests, "the step keeps waiting for a link or skip")

	// A pasted link still finishes the flow.
	postUpdate(t, h, testSecret, textUpdate(100, "https://drive.google.com/file/d/xyz/view"))
	require.Len(t, rec.requests, 1)
	require.Equal(t, "https://drive.google.com/file/d/xyz/view", rec.requests[0].Fields["receipt_url"])
}

func TestUnreadablePhotoAsksForManualEntry(t *testing.T) {
	api := newFakeAPI(t)
	h, _ := newTestHandler(t, api, "   ")

	upd := Update{
		UpdateID: 5,
		Message: &Message{
			MessageID: 14,
			From:      &User{ID: 100},
			Chat:      Chat{ID: 100},
			Photo:     []PhotoSize{{FileID: "f1"}},
		},
	}
	postUpdate(t, h, testSecret, upd)
	require.Contains(t, api.lastSentText(t), "Не вдалося розпізнати")
}
