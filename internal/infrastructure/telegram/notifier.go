package telegram

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"DigestHarvester/internal/config"
	"DigestHarvester/internal/ports"
)

var catchyPhrases = []string{
	" - Hot Updates Await!",
	" - Don't Miss Today's Buzz!",
	" - Fresh News Just In!",
	" - Your Daily Dose is Here!",
}

var catchyBodies = []string{
	"Unveil today's top stories in English & Gujarati! Tap now! 📰✨",
	"Stay sharp with the latest current affairs! Click to read! 🚀",
	"Your news fix is ready – dive in now! 🌟📢",
	"Big updates, small wait – tap to explore today's summary! 🔥",
}

// Notifier sends digest announcements to a Telegram chat via bot API.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	channel string
	now     func() time.Time
	pick    func(n int) int
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot and resolves the target chat, which may
// be a numeric id or a @channel username.
func NewNotifier(cfg config.TelegramConfig, client *http.Client) (*Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	n := &Notifier{bot: bot, now: time.Now, pick: rand.IntN}
	if id, ok := cfg.TelegramChatID(); ok {
		n.chatID = id
	} else {
		n.channel = cfg.ChatID
	}
	return n, nil
}

// Notify posts the announcement for a persisted digest.
func (n *Notifier) Notify(ctx context.Context, title string, recordID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := n.message(title, recordID)

	var msg tgbotapi.MessageConfig
	if n.channel != "" {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := n.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if sent.MessageID == 0 {
		return fmt.Errorf("telegram accepted message without id")
	}
	return nil
}

func (n *Notifier) message(title string, recordID int64) string {
	heading := n.now().Format("02 Jan") + " CA Summary" + catchyPhrases[n.pick(len(catchyPhrases))]
	body := catchyBodies[n.pick(len(catchyBodies))]

	var sb strings.Builder
	sb.WriteString("<b>" + tgbotapi.EscapeText(tgbotapi.ModeHTML, heading) + "</b>\n")
	sb.WriteString(tgbotapi.EscapeText(tgbotapi.ModeHTML, body) + "\n\n")
	sb.WriteString(tgbotapi.EscapeText(tgbotapi.ModeHTML, title))
	sb.WriteString(fmt.Sprintf("\npost_id: %d", recordID))
	return sb.String()
}

// NoopNotifier is used when no channel is configured or the bot login failed.
type NoopNotifier struct{}

var _ ports.Notifier = NoopNotifier{}

// Notify delivers nothing and says so with ports.ErrNotificationsDisabled.
func (NoopNotifier) Notify(context.Context, string, int64) error {
	return ports.ErrNotificationsDisabled
}
