package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"webhook_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu    sync.Mutex
	sent  []string
	fails int
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		if f.fails > 0 {
			f.fails--
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
			return
		}
		f.sent = append(f.sent, r.FormValue("text"))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	}
}

func newTestTelegram(t *testing.T, view PositionsView) (*Telegram, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	bot, err := tgbot.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return newTelegram(bot, 42, view), api
}

func TestTelegram_QueueDrainedOnStop(t *testing.T) {
	tg, api := newTestTelegram(t, nil)
	tg.Start(context.Background())

	tg.SendF(context.Background(), "🚀 %s %s", "Buy", "BTCUSDT")
	tg.SendF(context.Background(), "second")
	tg.Stop()

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"🚀 Buy BTCUSDT", "second"}, api.sent)
}

func TestDeliver_NoSleepAfterLastAttempt(t *testing.T) {
	tg, api := newTestTelegram(t, nil)
	tg.retryDelay = 300 * time.Millisecond
	api.fails = 10

	start := time.Now()
	tg.deliver("lost")
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, tg.retryDelay, "one pause between attempts")
	assert.Less(t, elapsed, 2*tg.retryDelay)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.sent)
	assert.Equal(t, 10-deliverAttempts, api.fails)
}

func TestDeliver_RetriesOnce(t *testing.T) {
	tg, api := newTestTelegram(t, nil)
	tg.retryDelay = time.Millisecond
	api.fails = 1

	tg.deliver("second try")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"second try"}, api.sent)
}

type viewStub []models.Position

func (v viewStub) Snapshot() []models.Position { return v }

func command(chatID int64, text string) tgbot.Update {
	return tgbot.Update{Message: &tgbot.Message{
		Text:     text,
		Chat:     &tgbot.Chat{ID: chatID},
		Entities: []tgbot.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestHandleUpdate_Positions(t *testing.T) {
	view := viewStub{{
		Symbol:     "BTCUSDT",
		Side:       models.SideBuy,
		Quantity:   decimal.NewFromInt(5),
		EntryPrice: decimal.NewFromInt(100),
		StopLoss:   decimal.NewFromInt(90),
		TP1:        decimal.NewFromInt(120),
	}}
	tg, _ := newTestTelegram(t, view)

	tg.handleUpdate(context.Background(), command(42, "/positions"))
	require.Len(t, tg.queue, 1)
	msg := <-tg.queue
	assert.Contains(t, msg, "BTCUSDT Buy qty=5 entry=100 sl=90 tp1=120 [ждём TP1]")

	tg.handleUpdate(context.Background(), command(7, "/positions"))
	assert.Len(t, tg.queue, 0, "foreign chat is ignored")
}

func TestFormatPositions_Empty(t *testing.T) {
	assert.Equal(t, "📭 Открытых позиций нет", formatPositions(nil))
}
