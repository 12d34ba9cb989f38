package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fvgbot/internal/broker/mt5"
	"fvgbot/internal/config"
	"fvgbot/internal/engine"
	"fvgbot/internal/logger"
	"fvgbot/internal/notify"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})

	logger.Info("Бот запущен.")

	client := mt5.New(cfg.Terminal.BaseUrl, cfg.Terminal.WSUrl, cfg.Terminal.ApiKey, cfg.Terminal.Secret, logger)
	notifier := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatIDs, logger)
	eng := engine.New(cfg, client, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := eng.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Fatal("\"Двигатель\" завершился с ошибкой.")
		}
	}()
	<-sigCh

	cancel()

	logger.Info("Бот остановлен.")
}
