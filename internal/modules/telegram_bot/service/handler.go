package service

import (
	"context"
	"fmt"
	"strings"
	"webhook_bot/internal/models"
	"webhook_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PositionsView — что бот показывает по /positions.
type PositionsView interface {
	Snapshot() []models.Position
}

func (t *Telegram) listen(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	// чужие чаты игнорируем
	if msg.Chat == nil || msg.Chat.ID != t.chatID {
		logger.Warn("[TG] command from foreign chat %v ignored", msg.Chat)
		return
	}

	switch msg.Command() {
	case "positions":
		t.SendF(ctx, "%s", formatPositions(t.view.Snapshot()))
	case "ping":
		t.SendF(ctx, "pong")
	default:
		t.SendF(ctx, "команды: /positions, /ping")
	}
}

func formatPositions(list []models.Position) string {
	if len(list) == 0 {
		return "📭 Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Позиции бота:\n")
	for _, p := range list {
		state := "ждём TP1"
		switch {
		case p.TP1Hit:
			state = "TP1 ✅, стоп в БУ"
		case p.PartialClosed:
			state = "TP1 частично, стоп переносится"
		}
		fmt.Fprintf(&b, "- %s %s qty=%s entry=%s sl=%s tp1=%s [%s]\n",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.StopLoss, p.TP1, state)
	}
	return b.String()
}
