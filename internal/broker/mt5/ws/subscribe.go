package ws

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

func (w *Client) Subscribe(ctx context.Context, symbols []string) error {
	w.symbols = symbols

	args := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		args = append(args, "tick."+symbol)
	}

	msg := SubscribeMessage{
		Op:   "subscribe",
		Args: args,
	}

	if w.apiKey != "" {
		timestamp := time.Now().UnixMilli()
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write([]byte(strconv.FormatInt(timestamp, 10) + w.apiKey))
		msg.ApiKey = w.apiKey
		msg.Timestamp = timestamp
		msg.Signature = hex.EncodeToString(mac.Sum(nil))
	}

	return w.conn.WriteJSON(msg)
}
