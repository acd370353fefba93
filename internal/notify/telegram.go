package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/goalwatch/goalwatch/internal/model"
)

// Min interval between messages to the same chat; Telegram throttles
// around 30 messages per minute per chat.
const telegramSendInterval = 2 * time.Second

// Telegram delivers match events to a Telegram chat. Nil-safe: when not
// configured, all methods are no-ops.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegram creates a Telegram notifier. Returns nil when token is
// empty (channel disabled); fails if the token is set but rejected.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("verify telegram bot: %w", err)
	}

	logger.Info("Telegram notifier initialized", "chat_id", chatID)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends one message covering all events from this tick, pacing
// sends to stay under Telegram's per-chat limit.
func (t *Telegram) Notify(ctx context.Context, match model.Match, events []model.Event) error {
	if t == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", match.Title(), match.Score)
	for _, e := range events {
		b.WriteString(FormatEvent(e))
		b.WriteByte('\n')
	}

	if err := t.throttle(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) throttle(ctx context.Context) error {
	t.mu.Lock()
	wait := telegramSendInterval - time.Since(t.lastSend)
	t.lastSend = time.Now().Add(max(wait, 0))
	t.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
