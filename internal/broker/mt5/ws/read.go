package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/models"

	"github.com/gorilla/websocket"
)

func (w *Client) readLoop() {
	w.logEntry().Debug("readLoop запущен.")

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.stopCh:
				return
			default:
			}
			w.logEntry().WithError(err).Warn("Ошибка чтения WS.")

			if !w.reconnect() {
				return
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logEntry().WithError(err).Warn("Не удалось разобрать WS сообщение.")
			continue
		}

		if strings.HasPrefix(msg.Topic, "tick") {
			w.handleTick(msg)
		}
	}
}

func (w *Client) handleTick(msg Message) {
	var payload tickPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		w.logEntry().WithError(err).Warn("Не удалось разобрать тик.")
		return
	}
	if payload.Symbol == "" {
		return
	}

	tick := models.Tick{
		Symbol: payload.Symbol,
		Bid:    payload.Bid,
		Ask:    payload.Ask,
		Time:   time.UnixMilli(payload.TimeMs),
	}

	select {
	case w.events <- broker.Event{Type: broker.EventTypeTick, Tick: &tick}:
	default:
		w.logEntry().WithField("symbol", payload.Symbol).Debug("Канал событий переполнен, тик пропущен.")
	}
}

func (w *Client) reconnect() bool {
	backoff := w.reconnectMin

	for {
		select {
		case <-w.stopCh:
			return false
		default:
		}

		w.logEntry().Info("Попытка переподключения к WS.")

		time.Sleep(backoff)

		conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
		if err != nil {
			w.logEntry().WithError(err).Warn("Не удалось переподключиться к WS.")
			backoff = w.nextBackoff(backoff)
			continue
		}

		if w.conn != nil {
			_ = w.conn.Close()
		}

		w.conn = conn
		w.conn.SetReadLimit(2 << 20)

		if len(w.symbols) > 0 {
			if err := w.Subscribe(context.Background(), w.symbols); err != nil {
				w.logEntry().WithError(err).Warn("Не удалось повторно подписаться на WS.")
				backoff = w.nextBackoff(backoff)
				continue
			}
		}

		w.events <- broker.Event{Type: broker.EventTypeReconnect}
		w.logEntry().Info("WS переподключён и подписки восстановлены.")
		return true
	}
}

func (w *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > w.reconnectMax {
		return w.reconnectMax
	}
	return next
}
