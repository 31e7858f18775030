package service

import (
	"context"
	"fmt"
	"sync"
	"time"
	"webhook_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	queueSize       = 256
	deliverAttempts = 2
)

// Telegram — уведомления в один чат. SendF не блокирует: сообщения
// уходят через очередь, которую разбирает воркер.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	view   PositionsView

	queue      chan string
	retryDelay time.Duration
	wg         sync.WaitGroup
	stop       context.CancelFunc
}

func NewTelegram(token string, chatID int64, view PositionsView) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(b, chatID, view), nil
}

func newTelegram(b *tgbot.BotAPI, chatID int64, view PositionsView) *Telegram {
	return &Telegram{
		bot:    b,
		chatID: chatID,
		view:   view,
		queue:  make(chan string, queueSize),

		retryDelay: time.Second,
	}
}

func (t *Telegram) SendF(_ context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	select {
	case t.queue <- msg:
	default:
		logger.Warn("[TG] queue full, dropped: %s", msg)
	}
}

func (t *Telegram) send(text string) error {
	_, err := t.bot.Send(tgbot.NewMessage(t.chatID, text))
	return err
}

// Start запускает воркер очереди и (если есть view) обработку команд.
func (t *Telegram) Start(ctx context.Context) {
	ctx, t.stop = context.WithCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.drain(ctx)
	}()

	if t.view != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.listen(ctx)
		}()
	}
}

// Stop дожидается отправки того, что уже в очереди.
func (t *Telegram) Stop() {
	if t.stop != nil {
		t.stop()
	}
	t.bot.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-t.queue:
					t.deliver(msg)
				default:
					return
				}
			}
		case msg := <-t.queue:
			t.deliver(msg)
		}
	}
}

func (t *Telegram) deliver(msg string) {
	for attempt := 1; attempt <= deliverAttempts; attempt++ {
		err := t.send(msg)
		if err == nil {
			return
		}
		logger.Warn("[TG] send failed (attempt %d): %v", attempt, err)
		if attempt < deliverAttempts {
			time.Sleep(t.retryDelay)
		}
	}
}

// Stdout — когда токена нет, уведомления просто пишутся в лог.
type Stdout struct{}

func (Stdout) SendF(_ context.Context, format string, args ...any) {
	logger.Info("[NOTIFY] "+format, args...)
}
