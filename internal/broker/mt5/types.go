package mt5

import (
	"net/http"

	"fvgbot/internal/broker/mt5/ws"
	"fvgbot/internal/logger"
)

type Client struct {
	baseURL    string
	wsURL      string
	apiKey     string
	secret     string
	httpClient *http.Client
	log        *logger.Logger
	stream     *ws.Client
}

type bridgeResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Time    int64  `json:"time"`
}

type symbolInfo struct {
	Symbol            string  `json:"symbol"`
	Point             float64 `json:"point"`
	TradeTickValue    float64 `json:"trade_tick_value"`
	TradeContractSize float64 `json:"trade_contract_size"`
	VolumeMin         float64 `json:"volume_min"`
	VolumeMax         float64 `json:"volume_max"`
	VolumeStep        float64 `json:"volume_step"`
	CurrencyProfit    string  `json:"currency_profit"`
}
