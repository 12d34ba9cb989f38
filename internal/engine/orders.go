package engine

import (
	"context"
	"fmt"
	"math"

	"fvgbot/internal/models"

	"github.com/sirupsen/logrus"
)

// placeBracket ставит отложенный стоп-ордер с SL/TP от последней
// закрытой свечи входного таймфрейма.
func (e *Engine) placeBracket(ctx context.Context, symbol string, st *SymbolState, prev models.Bar) error {
	inst, ok := e.instrument(symbol)
	if !ok {
		return fmt.Errorf("Нет параметров инструмента: %s", symbol)
	}

	entry, stop, target := bracketLevels(st.Direction, prev, e.cfg.Bot.TargetRR)
	if entry == stop {
		e.logEntry(symbol).Warn("Нулевая дистанция стопа, ордер не ставим.")
		return nil
	}

	decision := e.risk.Compute(ctx)

	stopPoints := math.Abs(entry-stop) / inst.Point
	lot, actualRisk := e.sizer.SizeLot(ctx, decision.Amount, stopPoints, inst)

	orderType := models.OrderTypeBuyStop
	label := "long"
	if st.Direction == models.DirectionBearish {
		orderType = models.OrderTypeSellStop
		label = "short"
	}

	order := models.Order{
		Symbol:     symbol,
		Type:       orderType,
		Price:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		Volume:     lot,
		VolumeStep: inst.VolumeStep,
		Comment:    fmt.Sprintf("%s %s risk=%.2f [%s]", e.cfg.Bot.Strategy, label, decision.Amount, e.tag),
	}

	e.logEntry(symbol).WithFields(logrus.Fields{
		"type":        orderType,
		"entry":       entry,
		"sl":          stop,
		"tp":          target,
		"lot":         lot,
		"risk_amount": decision.Amount,
		"actual_risk": actualRisk,
		"loss_streak": decision.LossStreak,
	}).Info("Постановка отложенного ордера.")

	placed, err := e.client.PlaceOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("Не удалось поставить ордер: %w", err)
	}

	e.mu.Lock()
	st.OrderTicket = placed.Ticket
	e.mu.Unlock()

	e.logEntry(symbol).WithField("ticket", placed.Ticket).Info("Ордер поставлен.")
	e.notifier.Notify(ctx, fmt.Sprintf("🎯 %s %s: вход %.5f, SL %.5f, TP %.5f, лот %.2f, риск $%.2f",
		symbol, label, entry, stop, target, lot, decision.Amount))

	return nil
}

// cancelSymbolOrders снимает все отложенные ордера инструмента.
// Ошибки не фатальны: неснятый ордер доберёт следующая сверка.
func (e *Engine) cancelSymbolOrders(ctx context.Context, symbol string, st *SymbolState) {
	orders, err := e.client.GetOpenOrders(ctx, symbol)
	if err != nil {
		e.logEntry(symbol).WithError(err).Warn("Не удалось получить ордера для снятия.")
		return
	}

	for _, ord := range orders {
		if err := e.withRetryVoid(ctx, func() error {
			return e.client.CancelOrder(ctx, symbol, ord.Ticket)
		}); err != nil {
			e.logEntry(symbol).WithError(err).WithField("ticket", ord.Ticket).Warn("Не удалось снять ордер.")
			continue
		}
		e.logEntry(symbol).WithField("ticket", ord.Ticket).Info("Ордер снят.")
	}

	e.mu.Lock()
	st.OrderTicket = 0
	e.mu.Unlock()
}

// bracketLevels — вход по экстремуму закрытой свечи в направлении
// сигнала, стоп по противоположному экстремуму, цель через RR.
func bracketLevels(direction models.Direction, prev models.Bar, rr float64) (entry, stop, target float64) {
	if rr <= 0 {
		rr = 3
	}
	if direction == models.DirectionBullish {
		entry = prev.High
		stop = prev.Low
		target = entry + (entry-stop)*rr
		return
	}
	entry = prev.Low
	stop = prev.High
	target = entry - (stop-entry)*rr
	return
}

func (e *Engine) instrument(symbol string) (models.Instrument, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.rules[symbol]
	return inst, ok
}
