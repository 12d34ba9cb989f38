package mt5

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fvgbot/internal/models"
)

func (c *Client) GetDeals(ctx context.Context, from, to time.Time) ([]models.Deal, error) {
	params := url.Values{}
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))

	var resp bridgeResponse[struct {
		List []struct {
			Ticket     int64   `json:"ticket"`
			PositionID int64   `json:"position_id"`
			Symbol     string  `json:"symbol"`
			Entry      string  `json:"entry"`
			Profit     float64 `json:"profit"`
			Volume     float64 `json:"volume"`
			Time       int64   `json:"time"`
		} `json:"list"`
	}]

	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/history/deals", params, nil, &resp); err != nil {
		return nil, err
	}

	var deals []models.Deal
	for _, item := range resp.Data.List {
		deals = append(deals, models.Deal{
			Ticket:     item.Ticket,
			PositionID: item.PositionID,
			Symbol:     item.Symbol,
			Entry:      models.DealEntry(item.Entry),
			Profit:     item.Profit,
			Volume:     item.Volume,
			Time:       time.Unix(item.Time, 0),
		})
	}
	return deals, nil
}
