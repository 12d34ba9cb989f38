package engine

import (
	"context"
	"fmt"
	"time"

	"fvgbot/internal/models"

	"github.com/sirupsen/logrus"
)

// processSymbol — один цикл машины состояний по инструменту.
// Любая ошибка внутри цикла гасится здесь и не трогает другие символы.
func (e *Engine) processSymbol(ctx context.Context, symbol string) {
	st := e.state(symbol)

	signalBars, err := e.client.GetBars(ctx, symbol, e.cfg.Bot.SignalTimeframe, 10)
	if err != nil {
		e.logEntry(symbol).WithError(err).Warn("Не удалось получить бары сигнального таймфрейма.")
		return
	}
	entryBars, err := e.client.GetBars(ctx, symbol, e.cfg.Bot.EntryTimeframe, 3)
	if err != nil {
		e.logEntry(symbol).WithError(err).Warn("Не удалось получить бары входного таймфрейма.")
		return
	}

	sig := e.detector.Detect(signalBars)
	if sig.Active() && !st.Active {
		e.mu.Lock()
		st.Active = true
		st.Direction = sig.Direction
		st.UpperLevel = sig.Upper
		st.LowerLevel = sig.Lower
		st.ActivatedAt = e.now()
		st.OrderTicket = 0
		e.mu.Unlock()

		e.logEntry(symbol).WithFields(logrus.Fields{
			"direction": st.Direction,
			"upper":     st.UpperLevel,
			"lower":     st.LowerLevel,
		}).Info("Сигнал обнаружен, слот активирован.")
	}

	if !st.Active {
		return
	}

	tick, err := e.currentTick(ctx, symbol)
	if err != nil {
		e.logEntry(symbol).WithError(err).Warn("Не удалось получить котировку.")
		return
	}

	// Инвалидация: цена пересекла противоположную границу сигнала.
	if invalidated(st.Direction, tick, st.UpperLevel, st.LowerLevel) {
		e.cancelSymbolOrders(ctx, symbol, st)
		e.deactivate(st)
		e.logEntry(symbol).WithFields(logrus.Fields{
			"bid": tick.Bid,
			"ask": tick.Ask,
		}).Info("Сигнал инвалидирован ценой.")
		e.notifier.Notify(ctx, fmt.Sprintf("❌ %s: сигнал инвалидирован ценой", symbol))
		return
	}

	// Истечение: прошло больше одной сигнальной свечи без исполнения.
	if e.now().Sub(st.ActivatedAt) > e.expiry() {
		e.cancelSymbolOrders(ctx, symbol, st)
		e.deactivate(st)
		e.logEntry(symbol).Info("Сигнал истёк по времени.")
		return
	}

	if len(entryBars) < 2 {
		e.logEntry(symbol).Warn("Недостаточно баров входного таймфрейма.")
		return
	}
	prev := entryBars[len(entryBars)-2]

	openOrders, err := e.client.GetOpenOrders(ctx, symbol)
	if err != nil {
		e.logEntry(symbol).WithError(err).Warn("Не удалось получить открытые ордера.")
		return
	}

	// Сверка: терминал мог снять или исполнить ордер без нас.
	if len(openOrders) == 0 && st.OrderTicket != 0 {
		e.logEntry(symbol).WithField("ticket", st.OrderTicket).Info("Ордера в терминале нет, сбрасываем тикет.")
		e.mu.Lock()
		st.OrderTicket = 0
		e.mu.Unlock()
	}

	if st.OrderTicket == 0 {
		if err := e.placeBracket(ctx, symbol, st, prev); err != nil {
			e.failSymbol(ctx, symbol, st, err)
		}
		return
	}

	// Ордер стоит: если уровни последней закрытой свечи уехали,
	// снимаем его — следующий цикл поставит новый.
	entry, stop, _ := bracketLevels(st.Direction, prev, e.cfg.Bot.TargetRR)
	for _, ord := range openOrders {
		if ord.Ticket != st.OrderTicket {
			continue
		}
		if ord.Price != entry || ord.StopLoss != stop {
			e.logEntry(symbol).WithFields(logrus.Fields{
				"old_price": ord.Price,
				"new_price": entry,
				"old_sl":    ord.StopLoss,
				"new_sl":    stop,
			}).Info("Уровни сместились, переставляем ордер.")
			e.cancelSymbolOrders(ctx, symbol, st)
			e.mu.Lock()
			st.OrderTicket = 0
			e.mu.Unlock()
		}
		return
	}
}

// failSymbol — отказобезопасный сброс: слот деактивируется, тикет
// очищается, остальные инструменты продолжают обрабатываться.
func (e *Engine) failSymbol(ctx context.Context, symbol string, st *SymbolState, err error) {
	e.logEntry(symbol).WithError(err).Error("Ошибка обработки инструмента, сброс состояния.")
	e.notifier.Notify(ctx, fmt.Sprintf("❌ %s: ошибка обработки: %v", symbol, err))
	e.deactivate(st)
}

func (e *Engine) deactivate(st *SymbolState) {
	e.mu.Lock()
	st.reset()
	e.mu.Unlock()
}

func (e *Engine) state(symbol string) *SymbolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[symbol]
	if !ok {
		st = &SymbolState{}
		e.states[symbol] = st
	}
	return st
}

func (e *Engine) expiry() time.Duration {
	minutes := e.cfg.Bot.ExpiryMinutes
	if minutes <= 0 {
		minutes = 9
	}
	return time.Duration(minutes) * time.Minute
}

// invalidated — чистая проверка по текущей котировке: бычий сигнал
// гаснет при bid ≤ нижней границы, медвежий при ask ≥ верхней.
func invalidated(direction models.Direction, tick models.Tick, upper, lower float64) bool {
	switch direction {
	case models.DirectionBullish:
		return tick.Bid <= lower
	case models.DirectionBearish:
		return tick.Ask >= upper
	}
	return false
}
