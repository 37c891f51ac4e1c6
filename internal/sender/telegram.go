package sender

import (
	"context"
	"fmt"
	"strings"

	"zip-weather/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram caps a message at 4096 chars.
const telegramMsgLimit = 4000

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts notifications to a single operator chat.
type TelegramSender struct {
	bot    botAPI
	chatID int64
}

func NewTelegramSender(cfg config.Telegram) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramSender{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

// Send renders n as HTML and posts it, split into several messages if needed.
func (t *TelegramSender) Send(ctx context.Context, n Notification) error {
	if n.Empty() {
		return nil
	}

	for _, part := range splitByLimit(renderHTML(n), telegramMsgLimit) {
		if err := t.sendOne(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramSender) sendOne(ctx context.Context, text string) error {
	// tgbotapi doesn't take a context, check between parts.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func renderHTML(n Notification) string {
	var b strings.Builder
	if n.Subject != "" {
		b.WriteString("<b>")
		b.WriteString(escapeTelegramHTML(n.Subject))
		b.WriteString("</b>")
	}
	for _, ln := range n.Lines {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(escapeTelegramHTML(ln))
	}
	return b.String()
}

// escapeTelegramHTML escapes the characters Telegram's HTML mode reserves.
func escapeTelegramHTML(s string) string {
	// '&' first.
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// splitByLimit packs whole lines into chunks of at most limit bytes and
// hard-splits lines that are longer than limit on their own.
func splitByLimit(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, ln := range strings.Split(text, "\n") {
		for len(ln) > limit {
			flush()
			out = append(out, ln[:limit])
			ln = ln[limit:]
		}

		add := len(ln)
		if cur.Len() > 0 {
			add++
		}
		if cur.Len()+add > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(ln)
	}

	flush()
	return out
}
