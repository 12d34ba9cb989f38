package mt5

import (
	"context"
	"fmt"

	"fvgbot/internal/broker"
	"fvgbot/internal/broker/mt5/ws"
)

func (c *Client) SubscribeTicks(ctx context.Context, symbols []string) (<-chan broker.Event, error) {
	if c.wsURL == "" {
		return nil, fmt.Errorf("Адрес WS не задан в конфигурации.")
	}

	stream := ws.New(c.wsURL, c.apiKey, c.secret, c.log)
	if err := stream.Connect(ctx); err != nil {
		return nil, err
	}

	if err := stream.Subscribe(ctx, symbols); err != nil {
		stream.Stop()
		return nil, err
	}

	c.stream = stream

	go func() {
		<-ctx.Done()
		stream.Stop()
	}()

	return stream.Events(), nil
}
