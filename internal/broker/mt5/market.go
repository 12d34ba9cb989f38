package mt5

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fvgbot/internal/models"
)

func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, count int) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", timeframe)
	params.Set("count", strconv.Itoa(count))

	var resp bridgeResponse[struct {
		List []struct {
			Time   int64   `json:"time"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int64   `json:"tick_volume"`
		} `json:"list"`
	}]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/bars", params, nil, &resp); err != nil {
		return nil, err
	}

	var bars []models.Bar
	for _, item := range resp.Data.List {
		bars = append(bars, models.Bar{
			Time:   time.Unix(item.Time, 0),
			Open:   item.Open,
			High:   item.High,
			Low:    item.Low,
			Close:  item.Close,
			Volume: item.Volume,
		})
	}
	return bars, nil
}

func (c *Client) GetTick(ctx context.Context, symbol string) (models.Tick, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp bridgeResponse[struct {
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
		TimeMs int64   `json:"time_msc"`
	}]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/tick", params, nil, &resp); err != nil {
		return models.Tick{}, err
	}

	if resp.Data.Bid == 0 && resp.Data.Ask == 0 {
		return models.Tick{}, fmt.Errorf("Нет котировки для инструмента: %s", symbol)
	}

	return models.Tick{
		Symbol: symbol,
		Bid:    resp.Data.Bid,
		Ask:    resp.Data.Ask,
		Time:   time.UnixMilli(resp.Data.TimeMs),
	}, nil
}

func (c *Client) GetInstrument(ctx context.Context, symbol string) (models.Instrument, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp bridgeResponse[symbolInfo]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/symbols/info", params, nil, &resp); err != nil {
		return models.Instrument{}, err
	}

	if resp.Data.Symbol == "" {
		return models.Instrument{}, fmt.Errorf("Инструмент не найден: %s", symbol)
	}

	if resp.Data.Point <= 0 {
		return models.Instrument{}, fmt.Errorf("Некорректное значение point=%v для инструмента %s", resp.Data.Point, symbol)
	}

	step := resp.Data.VolumeStep
	if step <= 0 {
		step = 0.01
	}

	return models.Instrument{
		Symbol:        resp.Data.Symbol,
		Point:         resp.Data.Point,
		TickValue:     resp.Data.TradeTickValue,
		ContractSize:  resp.Data.TradeContractSize,
		VolumeMin:     resp.Data.VolumeMin,
		VolumeMax:     resp.Data.VolumeMax,
		VolumeStep:    step,
		QuoteCurrency: resp.Data.CurrencyProfit,
	}, nil
}
