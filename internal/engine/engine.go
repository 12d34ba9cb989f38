package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/config"
	"fvgbot/internal/logger"
	"fvgbot/internal/models"
	"fvgbot/internal/notify"
	"fvgbot/internal/risk"
	"fvgbot/internal/signal"
)

type Engine struct {
	cfg      *config.Config
	client   broker.Client
	notifier notify.Notifier
	risk     *risk.Engine
	sizer    *risk.Sizer
	detector signal.Detector
	log      *logger.Logger

	mu        sync.Mutex
	states    map[string]*SymbolState
	rules     map[string]models.Instrument
	lastTicks map[string]models.Tick
	loc       *time.Location
	tag       string

	now func() time.Time
}

func New(cfg *config.Config, client broker.Client, notifier notify.Notifier, log *logger.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		client:    client,
		notifier:  notifier,
		log:       log,
		states:    make(map[string]*SymbolState, len(cfg.Bot.Symbols)),
		rules:     make(map[string]models.Instrument, len(cfg.Bot.Symbols)),
		lastTicks: make(map[string]models.Tick),
		tag:       newClientTag(),
		now:       time.Now,
	}

	e.risk = risk.NewEngine(client, cfg.Bot.BaseRisk, cfg.Bot.HistoryDays, log)
	e.sizer = risk.NewSizer(client, cfg.Bot.Symbols, log)

	switch strings.ToLower(cfg.Bot.Strategy) {
	case "atr":
		e.detector = signal.NewATRBreakout(cfg.Bot.ATRPeriod, cfg.Bot.ATRMultiplier)
	default:
		e.detector = signal.NewFVG()
	}

	for _, symbol := range cfg.Bot.Symbols {
		e.states[symbol] = &SymbolState{}
	}

	return e
}

func (e *Engine) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(e.cfg.Hours.Timezone)
	if err != nil {
		return fmt.Errorf("Некорректная таймзона %q: %w", e.cfg.Hours.Timezone, err)
	}
	e.loc = loc

	for _, symbol := range e.cfg.Bot.Symbols {
		inst, err := e.withRetryInstrument(ctx, symbol)
		if err != nil {
			return fmt.Errorf("Не удалось получить параметры инструмента %s: %w", symbol, err)
		}
		e.mu.Lock()
		e.rules[symbol] = inst
		e.mu.Unlock()
	}
	e.logEntry("").WithField("symbols", len(e.cfg.Bot.Symbols)).Info("Параметры инструментов получены.")

	e.notifier.Notify(ctx, fmt.Sprintf("✅ Бот запущен: %d инструментов, стратегия %s", len(e.cfg.Bot.Symbols), e.cfg.Bot.Strategy))

	if events, err := e.client.SubscribeTicks(ctx, e.cfg.Bot.Symbols); err != nil {
		e.logEntry("").WithError(err).Warn("Поток тиков недоступен, работаем только по REST.")
	} else {
		go e.consumeTicks(ctx, events)
	}

	symbolDelay := time.Duration(e.cfg.Runtime.SymbolDelayMs) * time.Millisecond
	if symbolDelay <= 0 {
		symbolDelay = 100 * time.Millisecond
	}
	cycleDelay := time.Duration(e.cfg.Runtime.CycleDelayMs) * time.Millisecond
	if cycleDelay <= 0 {
		cycleDelay = 1 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !e.withinTradingHours() {
			e.suspendOutsideHours(ctx)
			if !sleep(ctx, 1*time.Minute) {
				return ctx.Err()
			}
			continue
		}

		// Глобальный приоритет: пока есть открытая позиция, новые
		// сигналы не отслеживаются и все отложенные ордера снимаются.
		if e.enforceSingleExposure(ctx) {
			if !sleep(ctx, cycleDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, symbol := range e.cfg.Bot.Symbols {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.processSymbol(ctx, symbol)
			if !sleep(ctx, symbolDelay) {
				return ctx.Err()
			}
		}

		if !sleep(ctx, cycleDelay) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
