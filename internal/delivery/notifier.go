package delivery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier is the delivery channel.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, path, thumbPath string) error
	SendAudio(ctx context.Context, chatID int64, path string) error
}

// Telegram delivers through the Bot API. Every request is bounded by the
// HTTP client timeout; the library has no context support.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

// NewTelegram connects the bot. endpoint may be empty for the public API;
// otherwise it is a format string like tgbotapi.APIEndpoint. timeout bounds
// whole requests, uploads included; connectTimeout bounds dialing.
func NewTelegram(token, endpoint string, timeout, connectTimeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, common.ErrDeliveryDisabled
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	client := &http.Client{Timeout: timeout, Transport: transport}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) Notify(_ context.Context, chatID int64, text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (t *Telegram) SendVideo(_ context.Context, chatID int64, path, thumbPath string) error {
	v := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	v.SupportsStreaming = true
	if thumbPath != "" {
		v.Thumb = tgbotapi.FilePath(thumbPath)
	}
	_, err := t.bot.Send(v)
	return err
}

func (t *Telegram) SendAudio(_ context.Context, chatID int64, path string) error {
	_, err := t.bot.Send(tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path)))
	return err
}
