package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"fvgbot/internal/broker"
	"fvgbot/internal/logger"
	"fvgbot/internal/models"

	"github.com/sirupsen/logrus"
)

const settlementCurrency = "USD"

// Эмпирическая калибровка по инструментам, не выводится из метаданных.
var calibration = map[string]float64{
	"EURGBP": 100.0 / 80.0,
}

type sizeFunc func(ctx context.Context, riskAmount, stopPoints float64, inst models.Instrument) (float64, float64, error)

// Sizer превращает сумму риска и дистанцию стопа в объём, который
// примет терминал. Правила расчёта отличаются по классу инструмента,
// класс определяется один раз на символ при создании.
type Sizer struct {
	client broker.Client
	log    *logger.Logger
	rules  map[string]sizeFunc
}

func NewSizer(client broker.Client, symbols []string, log *logger.Logger) *Sizer {
	s := &Sizer{
		client: client,
		log:    log,
		rules:  make(map[string]sizeFunc, len(symbols)),
	}
	for _, symbol := range symbols {
		s.rules[symbol] = s.resolve(symbol)
	}
	return s
}

func (s *Sizer) resolve(symbol string) sizeFunc {
	switch {
	case strings.HasPrefix(symbol, "XAU") || strings.HasPrefix(symbol, "XAG"):
		return s.sizeMetal
	case !strings.HasSuffix(symbol, settlementCurrency):
		return s.sizeCross
	default:
		return s.sizeStandard
	}
}

// SizeLot возвращает объём и фактический риск в валюте счёта.
// Любая ошибка расчёта деградирует до минимального лота с исходной
// суммой риска: сбой сайзера не должен валить постановку ордера.
func (s *Sizer) SizeLot(ctx context.Context, riskAmount, stopPoints float64, inst models.Instrument) (float64, float64) {
	rule, ok := s.rules[inst.Symbol]
	if !ok {
		rule = s.resolve(inst.Symbol)
	}

	lot, slDollars, err := rule(ctx, riskAmount, stopPoints, inst)
	if err != nil {
		s.logEntry(inst.Symbol).WithError(err).Warn("Сбой расчёта объёма, берём минимальный лот.")
		return minLot(inst), riskAmount
	}

	if factor, ok := calibration[inst.Symbol]; ok {
		lot *= factor
	}

	step := inst.VolumeStep
	if step <= 0 {
		step = 0.01
	}
	lot = math.Round(lot/step) * step

	final := math.Max(inst.VolumeMin, math.Min(lot, inst.VolumeMax))
	actualRisk := final * slDollars

	s.logEntry(inst.Symbol).WithFields(logrus.Fields{
		"risk_amount": riskAmount,
		"stop_points": stopPoints,
		"lot":         final,
		"actual_risk": actualRisk,
	}).Debug("Объём рассчитан.")

	return final, actualRisk
}

func (s *Sizer) sizeStandard(_ context.Context, riskAmount, stopPoints float64, inst models.Instrument) (float64, float64, error) {
	slDollars := stopPoints * inst.TickValue
	if slDollars <= 0 {
		return 0, 0, fmt.Errorf("Нулевая стоимость стопа: points=%v tick_value=%v", stopPoints, inst.TickValue)
	}
	return riskAmount / slDollars, slDollars, nil
}

// Металлы: дистанция стопа приходит в пунктах цены, объём дополнительно
// делится на 10 — поправка на контрактную спецификацию золота.
func (s *Sizer) sizeMetal(_ context.Context, riskAmount, stopPoints float64, inst models.Instrument) (float64, float64, error) {
	slDollars := stopPoints * inst.TickValue
	if slDollars <= 0 {
		return 0, 0, fmt.Errorf("Нулевая стоимость стопа: points=%v tick_value=%v", stopPoints, inst.TickValue)
	}
	return riskAmount / slDollars / 10, slDollars, nil
}

// Кроссы: стоимость пункта конвертируется в валюту счёта через живую
// котировку контрвалюты; без котировки курс 1.0.
func (s *Sizer) sizeCross(ctx context.Context, riskAmount, stopPoints float64, inst models.Instrument) (float64, float64, error) {
	rate := 1.0
	counter := inst.QuoteCurrency
	if counter == "" && len(inst.Symbol) >= 6 {
		counter = inst.Symbol[3:6]
	}
	if counter != "" && counter != settlementCurrency {
		tick, err := s.client.GetTick(ctx, counter+settlementCurrency)
		if err != nil {
			s.logEntry(inst.Symbol).WithError(err).Debug("Нет котировки для конвертации, курс 1.0.")
		} else if tick.Ask > 0 {
			rate = tick.Ask
		}
	}

	slDollars := stopPoints * inst.TickValue * rate
	if slDollars <= 0 {
		return 0, 0, fmt.Errorf("Нулевая стоимость стопа: points=%v tick_value=%v rate=%v", stopPoints, inst.TickValue, rate)
	}
	return riskAmount / slDollars, slDollars, nil
}

func minLot(inst models.Instrument) float64 {
	if inst.VolumeMin > 0 {
		return inst.VolumeMin
	}
	return 0.01
}

func (s *Sizer) logEntry(symbol string) *logrus.Entry {
	return s.log.WithComponent("sizer").WithField("symbol", symbol)
}
