package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fvgbot/internal/logger"

	"github.com/sirupsen/logrus"
)

// Notifier — канал операционных уведомлений. Отправка без гарантий:
// ошибки доставки не возвращаются вызывающему.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Telegram struct {
	token      string
	chatIDs    []string
	httpClient *http.Client
	log        *logger.Logger
	enabled    bool
}

func NewTelegram(token string, chatIDs []string, log *logger.Logger) *Telegram {
	return &Telegram{
		token:   token,
		chatIDs: chatIDs,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:     log,
		enabled: token != "" && len(chatIDs) > 0,
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	if !t.enabled {
		return
	}

	endpoint := "https://api.telegram.org/bot" + t.token + "/sendMessage"

	for _, chatID := range t.chatIDs {
		payload := url.Values{}
		payload.Set("chat_id", chatID)
		payload.Set("text", text)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			t.logEntry().WithError(err).Debug("Не удалось создать запрос к Telegram.")
			continue
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			t.logEntry().WithError(err).Debug("Не удалось отправить уведомление в Telegram.")
			continue
		}
		if resp.StatusCode >= 400 {
			t.logEntry().WithField("status", resp.Status).Debug("Telegram вернул ошибку.")
		}
		resp.Body.Close()
	}
}

func (t *Telegram) logEntry() *logrus.Entry {
	return t.log.WithComponent("telegram")
}
