package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reply-assistant/internal/domain/ports/adapter"
)

var (
	_ adapter.MessagingClient        = (*Messenger)(nil)
	_ adapter.MessagingClientFactory = (*MessengerFactory)(nil)
)

// ErrBadChatID is returned for conversation or user ids that are not Telegram chat ids.
var ErrBadChatID = errors.New("telegram: invalid chat id")

// MessengerFactory keeps one bot client per tenant token; building a client
// costs a getMe round trip.
type MessengerFactory struct {
	endpoint string

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// NewMessengerFactory uses the public Bot API when endpoint is empty.
// A custom endpoint must keep the "%s/%s" token and method placeholders.
func NewMessengerFactory(endpoint string) *MessengerFactory {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &MessengerFactory{endpoint: endpoint, bots: map[string]*tgbotapi.BotAPI{}}
}

func (f *MessengerFactory) ForToken(ctx context.Context, token string) (adapter.MessagingClient, error) {
	if token == "" {
		return nil, errors.New("telegram: empty token")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if bot, ok := f.bots[token]; ok {
		return &Messenger{bot: bot}, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	f.bots[token] = bot
	return &Messenger{bot: bot}, nil
}

// Messenger posts through one tenant's bot.
type Messenger struct {
	bot *tgbotapi.BotAPI
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadChatID, s)
	}
	return id, nil
}

func (m *Messenger) PostMessage(ctx context.Context, conversationID, text, threadID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chatID, err := parseChatID(conversationID)
	if err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if threadID != "" {
		if replyTo, err := strconv.Atoi(threadID); err == nil {
			msg.ReplyToMessageID = replyTo
		}
	}
	sent, err := m.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// PostEphemeral sends the notice privately to the user; Telegram has no
// per-user visibility inside a group.
func (m *Messenger) PostEphemeral(ctx context.Context, conversationID, userID string, notice adapter.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := parseChatID(userID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, notice.Text)
	msg.DisableNotification = notice.LowPriority
	if kb := keyboard(notice.Buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram notice: %w", err)
	}
	return nil
}

// keyboard builds inline keyboard rows.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func keyboard(rows [][]adapter.Button) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &markup
}
