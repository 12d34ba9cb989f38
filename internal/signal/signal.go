package signal

import (
	"time"

	"fvgbot/internal/models"
)

// Signal — результат одного прогона детектора. Нулевое значение
// означает отсутствие сигнала.
type Signal struct {
	Direction  models.Direction
	Upper      float64
	Lower      float64
	DetectedAt time.Time
}

func (s Signal) Active() bool {
	return s.Direction == models.DirectionBullish || s.Direction == models.DirectionBearish
}

// Detector работает только по закрытым свечам: последний элемент серии
// считается ещё формирующейся свечой и в расчётах не участвует.
// При нехватке истории возвращается пустой Signal, ошибок нет.
type Detector interface {
	Detect(bars []models.Bar) Signal
}
