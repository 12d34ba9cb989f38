package signal

import (
	"math"
	"time"

	"fvgbot/internal/models"
)

// ATRBreakout помечает последнюю закрытую свечу сигналом, если её
// диапазон high-low превышает multiplier × ATR за окно period.
// Направление — по соотношению close и open свечи.
type ATRBreakout struct {
	Period     int
	Multiplier float64
}

func NewATRBreakout(period int, multiplier float64) ATRBreakout {
	if period <= 0 {
		period = 14
	}
	if multiplier <= 0 {
		multiplier = 1.5
	}
	return ATRBreakout{Period: period, Multiplier: multiplier}
}

func (d ATRBreakout) Detect(bars []models.Bar) Signal {
	// period свечей для ATR с предыдущим close, сигнальная и формирующаяся.
	if len(bars) < d.Period+3 {
		return Signal{}
	}

	closed := bars[:len(bars)-1]
	last := len(closed) - 1

	sum := 0.0
	for i := last - d.Period; i < last; i++ {
		sum += trueRange(closed[i], closed[i-1].Close)
	}
	atr := sum / float64(d.Period)
	if atr <= 0 {
		return Signal{}
	}

	cur := closed[last]
	span := cur.High - cur.Low
	if span <= d.Multiplier*atr {
		return Signal{}
	}

	direction := models.DirectionBullish
	if cur.Close < cur.Open {
		direction = models.DirectionBearish
	}

	return Signal{
		Direction:  direction,
		Upper:      cur.High,
		Lower:      cur.Low,
		DetectedAt: time.Now(),
	}
}

func trueRange(bar models.Bar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
