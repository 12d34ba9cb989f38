package engine

import (
	"time"

	"fvgbot/internal/models"
)

// SymbolState — слот сигнала по одному инструменту. Живёт только в
// памяти процесса: после рестарта состояние восстанавливается сверкой
// с открытыми ордерами терминала.
type SymbolState struct {
	Active      bool             `json:"active"`
	Direction   models.Direction `json:"direction"`
	UpperLevel  float64          `json:"upper_level"`
	LowerLevel  float64          `json:"lower_level"`
	ActivatedAt time.Time        `json:"activated_at"`
	OrderTicket int64            `json:"order_ticket"`
}

func (s *SymbolState) reset() {
	*s = SymbolState{}
}
