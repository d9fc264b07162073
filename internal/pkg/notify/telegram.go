package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
)

// Telegram 通过 bot 推送到固定会话
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "notify: init telegram bot")
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NewTelegramWithEndpoint 指定 API 地址，endpoint 形如 https://host/bot%s/%s
func NewTelegramWithEndpoint(token, endpoint string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "notify: init telegram bot")
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(_ context.Context, n Notice) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title()), html.EscapeString(n.URL))
	if n.Message != "" {
		text += "\n" + html.EscapeString(n.Message)
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return eris.Wrap(err, "notify: telegram send")
	}
	return nil
}
