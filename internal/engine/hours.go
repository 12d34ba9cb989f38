package engine

import (
	"context"
	"fmt"
	"time"
)

// withinTradingHours проверяет попадание текущего времени в торговое
// окно, заданное в таймзоне из конфигурации.
func (e *Engine) withinTradingHours() bool {
	openMin, err := parseClock(e.cfg.Hours.Open)
	if err != nil {
		e.logEntry("").WithError(err).Warn("Некорректное время открытия, торгуем без окна.")
		return true
	}
	closeMin, err := parseClock(e.cfg.Hours.Close)
	if err != nil {
		e.logEntry("").WithError(err).Warn("Некорректное время закрытия, торгуем без окна.")
		return true
	}

	now := e.now().In(e.loc)
	cur := now.Hour()*60 + now.Minute()

	return cur >= openMin && cur <= closeMin
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("Некорректное время %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// suspendOutsideHours закрывает позиции и снимает ордера по всем
// инструментам на время вне торгового окна.
func (e *Engine) suspendOutsideHours(ctx context.Context) {
	for _, symbol := range e.cfg.Bot.Symbols {
		if err := e.client.ClosePosition(ctx, symbol); err != nil {
			e.logEntry(symbol).WithError(err).Warn("Не удалось закрыть позицию вне торгового окна.")
		}
		st := e.state(symbol)
		e.cancelSymbolOrders(ctx, symbol, st)
		e.deactivate(st)
	}
	e.logEntry("").Debug("Вне торгового окна.")
}

// enforceSingleExposure — глобальный предохранитель: при любой
// открытой позиции все отложенные ордера снимаются и слоты гаснут.
// Лишние позиции (больше одной) закрываются, начиная с самой новой.
// Возвращает true, пока есть открытая экспозиция.
func (e *Engine) enforceSingleExposure(ctx context.Context) bool {
	positions, err := e.client.GetOpenPositions(ctx, "")
	if err != nil {
		// Нет снимка позиций — новые ордера ставить нельзя.
		e.logEntry("").WithError(err).Warn("Не удалось получить открытые позиции.")
		return true
	}

	if len(positions) == 0 {
		return false
	}

	if len(positions) > 1 {
		newest := positions[0]
		for _, pos := range positions[1:] {
			if pos.OpenTime.After(newest.OpenTime) {
				newest = pos
			}
		}
		e.logEntry(newest.Symbol).WithField("count", len(positions)).Warn("Несколько открытых позиций, закрываем лишнюю.")
		e.notifier.Notify(ctx, fmt.Sprintf("⚠️ Открыто позиций: %d, закрываем %s", len(positions), newest.Symbol))
		if err := e.client.ClosePosition(ctx, newest.Symbol); err != nil {
			e.logEntry(newest.Symbol).WithError(err).Warn("Не удалось закрыть лишнюю позицию.")
		}
	}

	for _, symbol := range e.cfg.Bot.Symbols {
		st := e.state(symbol)
		wasActive := st.Active || st.OrderTicket != 0
		e.cancelSymbolOrders(ctx, symbol, st)
		e.deactivate(st)
		if wasActive {
			e.logEntry(symbol).Info("Слот сигнала сброшен: есть открытая позиция.")
		}
	}

	return true
}
