package signal

import (
	"time"

	"fvgbot/internal/models"
)

// FVG ищет трёхсвечный дисбаланс (fair value gap) на последней
// закрытой свече. Бычий гэп: high за три свечи до текущей ниже low
// предыдущей, а low текущей лежит внутри этого разрыва. Медвежий —
// зеркально по high.
type FVG struct{}

func NewFVG() FVG {
	return FVG{}
}

func (FVG) Detect(bars []models.Bar) Signal {
	// Текущая — последняя закрытая, плюс сдвиги на 1 и 3 свечи назад.
	if len(bars) < 5 {
		return Signal{}
	}

	last := len(bars) - 2
	cur := bars[last]
	prev := bars[last-1]
	far := bars[last-3]

	if far.High < prev.Low && cur.Low < prev.Low && cur.Low > far.High {
		return Signal{
			Direction:  models.DirectionBullish,
			Upper:      prev.Low,
			Lower:      far.High,
			DetectedAt: time.Now(),
		}
	}

	if far.Low > prev.High && cur.High > prev.High && cur.High < far.Low {
		return Signal{
			Direction:  models.DirectionBearish,
			Upper:      far.Low,
			Lower:      prev.High,
			DetectedAt: time.Now(),
		}
	}

	return Signal{}
}
