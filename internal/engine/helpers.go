package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/models"

	"github.com/google/uuid"
)

func (e *Engine) withRetryInstrument(ctx context.Context, symbol string) (models.Instrument, error) {
	var lastErr error
	var backoff time.Duration = 1 * time.Second
	for i := 0; i < 5; i++ {
		inst, err := e.client.GetInstrument(ctx, symbol)
		if err == nil {
			return inst, nil
		}
		lastErr = err
		wait := backoff
		if isRateLimitError(err) {
			wait = time.Duration(math.Min(float64(backoff*4), float64(30*time.Second)))
		}
		e.logEntry(symbol).WithError(lastErr).Warn("Ошибка, повторяем запрос.")
		select {
		case <-ctx.Done():
			return models.Instrument{}, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return models.Instrument{}, lastErr
}

func (e *Engine) withRetryVoid(ctx context.Context, fn func() error) error {
	var lastErr error
	var backoff time.Duration = 1 * time.Second
	for i := 0; i < 5; i++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if isOrderNotExistError(lastErr) {
			// Ордера уже нет — цель достигнута.
			return nil
		}
		wait := backoff
		if isRateLimitError(lastErr) {
			wait = time.Duration(math.Min(float64(backoff*4), float64(30*time.Second)))
		}
		e.logEntry("").WithError(lastErr).Warn("Ошибка, повторяем запрос.")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return lastErr
}

// currentTick отдаёт свежий тик из WS-потока, а при его отсутствии
// или устаревании — котировку по REST.
func (e *Engine) currentTick(ctx context.Context, symbol string) (models.Tick, error) {
	e.mu.Lock()
	tick, ok := e.lastTicks[symbol]
	e.mu.Unlock()

	if ok && e.now().Sub(tick.Time) < 2*time.Second {
		return tick, nil
	}

	return e.client.GetTick(ctx, symbol)
}

func (e *Engine) consumeTicks(ctx context.Context, events <-chan broker.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				e.logEntry("").Warn("Канал событий WS закрыт.")
				return
			}
			switch event.Type {
			case broker.EventTypeTick:
				if event.Tick != nil {
					e.mu.Lock()
					e.lastTicks[event.Tick.Symbol] = *event.Tick
					e.mu.Unlock()
				}
			case broker.EventTypeReconnect:
				e.logEntry("").Info("WS переподключён, кэш тиков очищен.")
				e.mu.Lock()
				e.lastTicks = make(map[string]models.Tick)
				e.mu.Unlock()
			}
		}
	}
}

func newClientTag() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(raw) > 8 {
		return raw[:8]
	}
	return raw
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Too many requests")
}

func isOrderNotExistError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "order not found") || strings.Contains(msg, "10013")
}
