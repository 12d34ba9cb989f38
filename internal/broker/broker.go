package broker

import (
	"context"
	"time"

	"fvgbot/internal/models"
)

type EventType string

const (
	EventTypeTick      EventType = "Tick"
	EventTypeReconnect EventType = "Reconnect"
)

type Event struct {
	Type EventType
	Tick *models.Tick
}

// Client — шлюз к торговому терминалу. Единственное место,
// где сырые ответы терминала превращаются в типы models.
type Client interface {
	GetBars(ctx context.Context, symbol, timeframe string, count int) ([]models.Bar, error)
	GetTick(ctx context.Context, symbol string) (models.Tick, error)
	GetInstrument(ctx context.Context, symbol string) (models.Instrument, error)
	PlaceOrder(ctx context.Context, order models.Order) (models.Order, error)
	CancelOrder(ctx context.Context, symbol string, ticket int64) error
	GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	GetOpenPositions(ctx context.Context, symbol string) ([]models.Position, error)
	ClosePosition(ctx context.Context, symbol string) error
	GetDeals(ctx context.Context, from, to time.Time) ([]models.Deal, error)
	SubscribeTicks(ctx context.Context, symbols []string) (<-chan Event, error)
}
