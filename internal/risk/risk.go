package risk

import (
	"context"
	"math"
	"sort"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/logger"
	"fvgbot/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	// Сделка с прибылью меньше порога считается убыточной для серии:
	// безубыток не прерывает серию, так настроена кривая риска.
	lossThreshold = 2.0

	// Серия длиннее лимита считается аномалией, счётчики сбрасываются.
	// Сброс срабатывает строго при streak > streakCap, ровно 10 — ещё серия.
	streakCap = 10

	riskDivisor = 3.0
)

type Decision struct {
	LossStreak     int
	CumulativeLoss float64
	Amount         float64
}

type Engine struct {
	client      broker.Client
	log         *logger.Logger
	baseAmount  float64
	historyDays int
}

func NewEngine(client broker.Client, baseAmount float64, historyDays int, log *logger.Logger) *Engine {
	if baseAmount <= 0 {
		baseAmount = 10.0
	}
	if historyDays <= 0 {
		historyDays = 30
	}
	return &Engine{
		client:      client,
		log:         log,
		baseAmount:  baseAmount,
		historyDays: historyDays,
	}
}

// Compute считает серию убытков по истории закрытых позиций и
// превращает её в сумму риска для следующего ордера. Любая ошибка
// истории даёт безопасный дефолт, наружу ошибки не уходят.
func (r *Engine) Compute(ctx context.Context) Decision {
	streak, cumulative := r.lossStreak(ctx)
	amount := r.AmountFor(streak, cumulative)

	r.logEntry().WithFields(logrus.Fields{
		"loss_streak":     streak,
		"cumulative_loss": cumulative,
		"risk_amount":     amount,
	}).Info("Расчёт риска.")

	return Decision{
		LossStreak:     streak,
		CumulativeLoss: cumulative,
		Amount:         amount,
	}
}

func (r *Engine) lossStreak(ctx context.Context) (int, float64) {
	to := time.Now().Add(24 * time.Hour)
	from := to.AddDate(0, 0, -r.historyDays-1)

	deals, err := r.client.GetDeals(ctx, from, to)
	if err != nil {
		r.logEntry().WithError(err).Warn("Не удалось получить историю сделок, берём базовый риск.")
		return 1, 0
	}
	if len(deals) == 0 {
		r.logEntry().Info("История сделок пуста, берём базовый риск.")
		return 1, 0
	}

	positions := groupByPosition(deals)

	streak := 0
	cumulative := 0.0
	for _, pos := range positions {
		if pos.Profit >= lossThreshold {
			break
		}
		streak++
		cumulative += math.Abs(pos.Profit)
	}

	if streak > streakCap {
		streak = 0
		cumulative = 0
	}
	if streak < 1 {
		streak = 1
		cumulative = math.Max(cumulative, 0)
	}

	return streak, cumulative
}

// AmountFor — формула риска: при серии ≤ 1 базовая сумма, дальше
// ((streak+1)*base + cumulativeLoss) / 3 с округлением до цента.
func (r *Engine) AmountFor(streak int, cumulativeLoss float64) float64 {
	if streak <= 1 {
		return r.baseAmount
	}
	amount := (float64(streak+1)*r.baseAmount + cumulativeLoss) / riskDivisor
	return math.Round(amount*100) / 100
}

type closedPosition struct {
	PositionID int64
	Symbol     string
	Profit     float64
	Volume     float64
	CloseTime  time.Time
}

// groupByPosition сворачивает сделки в позиции: профит суммируется,
// время закрытия — максимальное, объём — максимальный. Результат
// отсортирован от новых к старым.
func groupByPosition(deals []models.Deal) []closedPosition {
	byID := make(map[int64]*closedPosition)
	for _, deal := range deals {
		pos, ok := byID[deal.PositionID]
		if !ok {
			pos = &closedPosition{
				PositionID: deal.PositionID,
				Symbol:     deal.Symbol,
			}
			byID[deal.PositionID] = pos
		}
		pos.Profit += deal.Profit
		if deal.Volume > pos.Volume {
			pos.Volume = deal.Volume
		}
		if deal.Time.After(pos.CloseTime) {
			pos.CloseTime = deal.Time
		}
	}

	positions := make([]closedPosition, 0, len(byID))
	for _, pos := range byID {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CloseTime.After(positions[j].CloseTime)
	})
	return positions
}

func (r *Engine) logEntry() *logrus.Entry {
	return r.log.WithComponent("risk")
}
