package ws

import (
	"encoding/json"
	"sync"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/logger"

	"github.com/gorilla/websocket"
)

type Client struct {
	url          string
	apiKey       string
	secret       string
	log          *logger.Logger
	conn         *websocket.Conn
	events       chan broker.Event
	stopCh       chan struct{}
	stopOnce     sync.Once
	symbols      []string
	reconnectMin time.Duration
	reconnectMax time.Duration
}

type Message struct {
	Topic string          `json:"topic"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type SubscribeMessage struct {
	Op        string   `json:"op"`
	Args      []string `json:"args"`
	ApiKey    string   `json:"api_key,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Signature string   `json:"signature,omitempty"`
}

type tickPayload struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TimeMs int64   `json:"time_msc"`
}
