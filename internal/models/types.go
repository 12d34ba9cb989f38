package models

import "time"

type OrderType string
type Direction string
type DealEntry string

const (
	OrderTypeBuyStop  OrderType = "BUY_STOP"
	OrderTypeSellStop OrderType = "SELL_STOP"

	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"

	DealEntryIn  DealEntry = "IN"
	DealEntryOut DealEntry = "OUT"
)

// Bar — одна свеча таймфрейма. Серии идут от старых к новым,
// последний элемент может быть ещё не закрытой свечой.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

type Instrument struct {
	Symbol        string  `json:"symbol"`
	Point         float64 `json:"point"`
	TickValue     float64 `json:"tick_value"`
	ContractSize  float64 `json:"contract_size"`
	VolumeMin     float64 `json:"volume_min"`
	VolumeMax     float64 `json:"volume_max"`
	VolumeStep    float64 `json:"volume_step"`
	QuoteCurrency string  `json:"quote_currency"`
}

type Order struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Type       OrderType `json:"type"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Volume     float64   `json:"volume"`
	VolumeStep float64   `json:"-"`
	Comment    string    `json:"comment"`
	CreateTime time.Time `json:"create_time"`
}

type Position struct {
	Ticket    int64     `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Volume    float64   `json:"volume"`
	OpenPrice float64   `json:"open_price"`
	Profit    float64   `json:"profit"`
	OpenTime  time.Time `json:"open_time"`
}

// Deal — закрытая сделка из истории терминала. Несколько сделок
// с одним PositionID образуют одну позицию.
type Deal struct {
	Ticket     int64     `json:"ticket"`
	PositionID int64     `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Entry      DealEntry `json:"entry"`
	Profit     float64   `json:"profit"`
	Volume     float64   `json:"volume"`
	Time       time.Time `json:"time"`
}
