package mt5

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"fvgbot/internal/models"
)

func (c *Client) PlaceOrder(ctx context.Context, order models.Order) (models.Order, error) {

	body := map[string]any{
		"action":  "PENDING",
		"symbol":  order.Symbol,
		"type":    order.Type,
		"volume":  formatWithStep(order.Volume, order.VolumeStep),
		"price":   order.Price,
		"sl":      order.StopLoss,
		"tp":      order.TakeProfit,
		"comment": order.Comment,
	}

	var resp bridgeResponse[struct {
		Ticket int64 `json:"ticket"`
	}]

	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/orders", nil, body, &resp); err != nil {
		return models.Order{}, err
	}

	order.Ticket = resp.Data.Ticket
	return order, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, ticket int64) error {
	body := map[string]any{
		"symbol": symbol,
		"ticket": ticket,
	}

	var resp bridgeResponse[struct{}]

	return c.doRequest(ctx, http.MethodPost, "/api/v1/orders/cancel", nil, body, &resp)
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var resp bridgeResponse[struct {
		List []struct {
			Ticket    int64   `json:"ticket"`
			Symbol    string  `json:"symbol"`
			Type      string  `json:"type"`
			PriceOpen float64 `json:"price_open"`
			SL        float64 `json:"sl"`
			TP        float64 `json:"tp"`
			Volume    float64 `json:"volume_current"`
			Comment   string  `json:"comment"`
			TimeSetup int64   `json:"time_setup"`
		} `json:"list"`
	}]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/orders", params, nil, &resp); err != nil {
		return nil, err
	}

	var orders []models.Order
	for _, item := range resp.Data.List {
		orders = append(orders, models.Order{
			Ticket:     item.Ticket,
			Symbol:     item.Symbol,
			Type:       models.OrderType(item.Type),
			Price:      item.PriceOpen,
			StopLoss:   item.SL,
			TakeProfit: item.TP,
			Volume:     item.Volume,
			Comment:    item.Comment,
			CreateTime: time.Unix(item.TimeSetup, 0),
		})
	}
	return orders, nil
}

func (c *Client) GetOpenPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var resp bridgeResponse[struct {
		List []struct {
			Ticket    int64   `json:"ticket"`
			Symbol    string  `json:"symbol"`
			Type      int     `json:"type"`
			Volume    float64 `json:"volume"`
			PriceOpen float64 `json:"price_open"`
			Profit    float64 `json:"profit"`
			Time      int64   `json:"time"`
		} `json:"list"`
	}]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/positions", params, nil, &resp); err != nil {
		return nil, err
	}

	var positions []models.Position
	for _, item := range resp.Data.List {
		direction := models.DirectionBullish
		if item.Type == 1 {
			direction = models.DirectionBearish
		}
		positions = append(positions, models.Position{
			Ticket:    item.Ticket,
			Symbol:    item.Symbol,
			Direction: direction,
			Volume:    item.Volume,
			OpenPrice: item.PriceOpen,
			Profit:    item.Profit,
			OpenTime:  time.Unix(item.Time, 0),
		})
	}
	return positions, nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	body := map[string]any{
		"symbol": symbol,
	}

	var resp bridgeResponse[struct{}]

	return c.doRequest(ctx, http.MethodPost, "/api/v1/positions/close", nil, body, &resp)
}
