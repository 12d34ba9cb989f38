package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"fvgbot/internal/broker"
	"fvgbot/internal/config"
	"fvgbot/internal/logger"
	"fvgbot/internal/models"
)

type fakeBroker struct {
	mu sync.Mutex

	bars    map[string][]models.Bar // по таймфрейму
	barsErr error

	tick    models.Tick
	tickErr error

	orders    []models.Order
	ordersErr error

	positions    []models.Position
	positionsErr error

	deals []models.Deal

	nextTicket int64
	placeErr   error

	placed    []models.Order
	cancelled []int64
	closed    []string
}

func (f *fakeBroker) GetBars(ctx context.Context, symbol, timeframe string, count int) ([]models.Bar, error) {
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	return f.bars[timeframe], nil
}

func (f *fakeBroker) GetTick(ctx context.Context, symbol string) (models.Tick, error) {
	return f.tick, f.tickErr
}

func (f *fakeBroker) GetInstrument(ctx context.Context, symbol string) (models.Instrument, error) {
	return models.Instrument{}, fmt.Errorf("not implemented")
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if f.placeErr != nil {
		return models.Order{}, f.placeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order.Ticket = f.nextTicket
	f.placed = append(f.placed, order)
	return order, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, symbol string, ticket int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ticket)
	return nil
}

func (f *fakeBroker) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	return f.orders, f.ordersErr
}

func (f *fakeBroker) GetOpenPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	return f.positions, f.positionsErr
}

func (f *fakeBroker) ClosePosition(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, symbol)
	return nil
}

func (f *fakeBroker) GetDeals(ctx context.Context, from, to time.Time) ([]models.Deal, error) {
	return f.deals, nil
}

func (f *fakeBroker) SubscribeTicks(ctx context.Context, symbols []string) (<-chan broker.Event, error) {
	return nil, fmt.Errorf("not implemented")
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

func (f *fakeNotifier) contains(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func testConfig() *config.Config {
	return &config.Config{
		Bot: config.BotConfig{
			Symbols:         []string{"EURUSD"},
			Strategy:        "fvg",
			BaseRisk:        10,
			TargetRR:        3,
			SignalTimeframe: "M10",
			EntryTimeframe:  "M5",
			ExpiryMinutes:   9,
			HistoryDays:     30,
		},
		Hours: config.HoursConfig{
			Timezone: "UTC",
			Open:     "02:00",
			Close:    "15:00",
		},
	}
}

func newTestEngine(client broker.Client) (*Engine, *fakeNotifier) {
	notifier := &fakeNotifier{}
	e := New(testConfig(), client, notifier, logger.New(logger.Config{Level: "error"}))
	e.rules["EURUSD"] = models.Instrument{
		Symbol:     "EURUSD",
		Point:      0.0001,
		TickValue:  1.0,
		VolumeMin:  0.01,
		VolumeMax:  50,
		VolumeStep: 0.01,
	}
	e.loc = time.UTC
	return e, notifier
}

func candles(ohlc [][4]float64) []models.Bar {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 0, len(ohlc))
	for i, v := range ohlc {
		bars = append(bars, models.Bar{
			Time:  t0.Add(time.Duration(i) * 10 * time.Minute),
			Open:  v[0],
			High:  v[1],
			Low:   v[2],
			Close: v[3],
		})
	}
	return bars
}

// Серия с бычьим разрывом на последней закрытой свече.
func bullishGapBars() []models.Bar {
	return candles([][4]float64{
		{1.1950, 1.1990, 1.1940, 1.1980},
		{1.1960, 1.2000, 1.1950, 1.1990},
		{1.1990, 1.2030, 1.1980, 1.2020},
		{1.2060, 1.2100, 1.2050, 1.2090},
		{1.2090, 1.2110, 1.2020, 1.2100},
		{1.2100, 1.2120, 1.2090, 1.2110},
	})
}

func flatBars() []models.Bar {
	flat := [4]float64{1.2000, 1.2010, 1.1990, 1.2005}
	return candles([][4]float64{flat, flat, flat, flat, flat, flat})
}

func entryBars() []models.Bar {
	return candles([][4]float64{
		{1.2060, 1.2090, 1.2050, 1.2080},
		{1.2080, 1.2100, 1.2080, 1.2095},
		{1.2095, 1.2105, 1.2090, 1.2100},
	})
}

func insideTick() models.Tick {
	return models.Tick{Symbol: "EURUSD", Bid: 1.2030, Ask: 1.2032}
}

func TestProcessActivatesAndPlacesOrder(t *testing.T) {
	fake := &fakeBroker{
		bars:       map[string][]models.Bar{"M10": bullishGapBars(), "M5": entryBars()},
		tick:       insideTick(),
		nextTicket: 42,
	}
	e, notifier := newTestEngine(fake)

	e.processSymbol(context.Background(), "EURUSD")

	st := e.state("EURUSD")
	if !st.Active || st.Direction != models.DirectionBullish {
		t.Fatalf("state = %+v, want active bullish", st)
	}
	if st.UpperLevel != 1.2050 || st.LowerLevel != 1.2000 {
		t.Fatalf("levels = [%v, %v], want [1.2000, 1.2050]", st.LowerLevel, st.UpperLevel)
	}
	if st.OrderTicket != 42 {
		t.Fatalf("ticket = %d, want 42", st.OrderTicket)
	}

	if len(fake.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(fake.placed))
	}
	ord := fake.placed[0]
	if ord.Type != models.OrderTypeBuyStop {
		t.Fatalf("type = %s, want buy stop", ord.Type)
	}
	if ord.Price != 1.2100 || ord.StopLoss != 1.2080 {
		t.Fatalf("entry/sl = %v/%v, want 1.2100/1.2080", ord.Price, ord.StopLoss)
	}
	if math.Abs(ord.TakeProfit-1.2160) > 1e-9 {
		t.Fatalf("tp = %v, want 1.2160", ord.TakeProfit)
	}
	if math.Abs(ord.Volume-0.50) > 1e-9 {
		t.Fatalf("volume = %v, want 0.50", ord.Volume)
	}
	if !strings.Contains(ord.Comment, "fvg long risk=10.00") {
		t.Fatalf("comment = %q", ord.Comment)
	}
	if !notifier.contains("EURUSD long") {
		t.Fatalf("нет уведомления о постановке: %v", notifier.messages)
	}
}

func TestProcessInvalidatesBullishByBid(t *testing.T) {
	fake := &fakeBroker{
		bars:   map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:   models.Tick{Symbol: "EURUSD", Bid: 1.1995, Ask: 1.1997},
		orders: []models.Order{{Ticket: 7, Symbol: "EURUSD"}},
	}
	e, notifier := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = time.Now()
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if st.Active || st.OrderTicket != 0 {
		t.Fatalf("state = %+v, want reset after invalidation", st)
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v, want [7]", fake.cancelled)
	}
	if !notifier.contains("инвалидирован") {
		t.Fatalf("нет уведомления об инвалидации: %v", notifier.messages)
	}
}

func TestProcessInvalidatesBearishByAsk(t *testing.T) {
	fake := &fakeBroker{
		bars: map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick: models.Tick{Symbol: "EURUSD", Bid: 1.2055, Ask: 1.2057},
	}
	e, _ := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBearish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = time.Now()

	e.processSymbol(context.Background(), "EURUSD")

	if st.Active {
		t.Fatalf("state = %+v, want inactive after invalidation", st)
	}
}

func TestProcessExpiresStaleSignal(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeBroker{
		bars:   map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:   insideTick(),
		orders: []models.Order{{Ticket: 7, Symbol: "EURUSD"}},
	}
	e, _ := newTestEngine(fake)
	e.now = func() time.Time { return fixed }
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = fixed.Add(-10 * time.Minute)
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if st.Active || st.OrderTicket != 0 {
		t.Fatalf("state = %+v, want reset after expiry", st)
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v, want [7]", fake.cancelled)
	}
}

func TestProcessKeepsFreshSignal(t *testing.T) {
	// 8 минут из 9 — сигнал ещё жив, ордер остаётся.
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeBroker{
		bars:   map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:   insideTick(),
		orders: []models.Order{{Ticket: 7, Symbol: "EURUSD", Price: 1.2100, StopLoss: 1.2080}},
	}
	e, _ := newTestEngine(fake)
	e.now = func() time.Time { return fixed }
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = fixed.Add(-8 * time.Minute)
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if !st.Active || st.OrderTicket != 7 {
		t.Fatalf("state = %+v, want untouched", st)
	}
	if len(fake.cancelled) != 0 || len(fake.placed) != 0 {
		t.Fatalf("cancelled=%v placed=%v, want no actions", fake.cancelled, fake.placed)
	}
}

func TestProcessReconcilesLostOrder(t *testing.T) {
	// Терминал снял ордер без нас: тикет сбрасывается и ставится новый.
	fake := &fakeBroker{
		bars:       map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:       insideTick(),
		nextTicket: 99,
	}
	e, _ := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = time.Now()
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if st.OrderTicket != 99 {
		t.Fatalf("ticket = %d, want replacement 99", st.OrderTicket)
	}
	if len(fake.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(fake.placed))
	}
}

func TestProcessReplacesDriftedOrder(t *testing.T) {
	fake := &fakeBroker{
		bars:   map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:   insideTick(),
		orders: []models.Order{{Ticket: 7, Symbol: "EURUSD", Price: 1.2110, StopLoss: 1.2080}},
	}
	e, _ := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = time.Now()
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if st.OrderTicket != 0 {
		t.Fatalf("ticket = %d, want 0 after drift", st.OrderTicket)
	}
	if !st.Active {
		t.Fatal("слот погас, хотя сигнал ещё действует")
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v, want [7]", fake.cancelled)
	}
	if len(fake.placed) != 0 {
		t.Fatalf("placed = %v, перестановка должна ждать следующего цикла", fake.placed)
	}
}

func TestProcessPlaceFailureResetsSlot(t *testing.T) {
	fake := &fakeBroker{
		bars:     map[string][]models.Bar{"M10": flatBars(), "M5": entryBars()},
		tick:     insideTick(),
		placeErr: fmt.Errorf("terminal rejected"),
	}
	e, notifier := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.UpperLevel = 1.2050
	st.LowerLevel = 1.2000
	st.ActivatedAt = time.Now()

	e.processSymbol(context.Background(), "EURUSD")

	if st.Active || st.OrderTicket != 0 {
		t.Fatalf("state = %+v, want reset after failure", st)
	}
	if !notifier.contains("ошибка обработки") {
		t.Fatalf("нет уведомления об ошибке: %v", notifier.messages)
	}
}

func TestProcessBarsErrorKeepsState(t *testing.T) {
	fake := &fakeBroker{barsErr: fmt.Errorf("terminal unavailable")}
	e, _ := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.Direction = models.DirectionBullish
	st.OrderTicket = 7

	e.processSymbol(context.Background(), "EURUSD")

	if !st.Active || st.OrderTicket != 7 {
		t.Fatalf("state = %+v, want untouched on transient error", st)
	}
}

func TestEnforceSingleExposureBlocksTrading(t *testing.T) {
	fake := &fakeBroker{
		positions: []models.Position{{Ticket: 1, Symbol: "EURUSD", OpenTime: time.Now()}},
		orders:    []models.Order{{Ticket: 7, Symbol: "EURUSD"}},
	}
	e, _ := newTestEngine(fake)
	st := e.state("EURUSD")
	st.Active = true
	st.OrderTicket = 7

	if !e.enforceSingleExposure(context.Background()) {
		t.Fatal("открытая позиция не заблокировала торговлю")
	}
	if st.Active || st.OrderTicket != 0 {
		t.Fatalf("state = %+v, want reset while position is open", st)
	}
	if len(fake.cancelled) == 0 {
		t.Fatal("отложенный ордер не снят")
	}
}

func TestEnforceSingleExposureClosesNewest(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeBroker{
		positions: []models.Position{
			{Ticket: 1, Symbol: "EURUSD", OpenTime: base},
			{Ticket: 2, Symbol: "GBPUSD", OpenTime: base.Add(time.Minute)},
		},
	}
	e, notifier := newTestEngine(fake)

	if !e.enforceSingleExposure(context.Background()) {
		t.Fatal("позиции не заблокировали торговлю")
	}
	if len(fake.closed) != 1 || fake.closed[0] != "GBPUSD" {
		t.Fatalf("closed = %v, want newest GBPUSD", fake.closed)
	}
	if !notifier.contains("GBPUSD") {
		t.Fatalf("нет уведомления о закрытии: %v", notifier.messages)
	}
}

func TestEnforceSingleExposureNoPositions(t *testing.T) {
	e, _ := newTestEngine(&fakeBroker{})

	if e.enforceSingleExposure(context.Background()) {
		t.Fatal("торговля заблокирована без позиций")
	}
}

func TestEnforceSingleExposureSnapshotError(t *testing.T) {
	fake := &fakeBroker{positionsErr: fmt.Errorf("terminal unavailable")}
	e, _ := newTestEngine(fake)

	if !e.enforceSingleExposure(context.Background()) {
		t.Fatal("без снимка позиций торговля должна стоять")
	}
}

func TestBracketLevels(t *testing.T) {
	prev := models.Bar{Open: 1.2085, High: 1.2100, Low: 1.2080, Close: 1.2095}

	entry, stop, target := bracketLevels(models.DirectionBullish, prev, 3)
	if entry != 1.2100 || stop != 1.2080 {
		t.Fatalf("bullish entry/stop = %v/%v, want 1.2100/1.2080", entry, stop)
	}
	if math.Abs(target-1.2160) > 1e-9 {
		t.Fatalf("bullish target = %v, want 1.2160", target)
	}

	entry, stop, target = bracketLevels(models.DirectionBearish, prev, 3)
	if entry != 1.2080 || stop != 1.2100 {
		t.Fatalf("bearish entry/stop = %v/%v, want 1.2080/1.2100", entry, stop)
	}
	if math.Abs(target-1.2020) > 1e-9 {
		t.Fatalf("bearish target = %v, want 1.2020", target)
	}

	// Невалидный RR заменяется дефолтом 3.
	_, _, target = bracketLevels(models.DirectionBullish, prev, 0)
	if math.Abs(target-1.2160) > 1e-9 {
		t.Fatalf("default rr target = %v, want 1.2160", target)
	}
}

func TestInvalidated(t *testing.T) {
	cases := []struct {
		name      string
		direction models.Direction
		tick      models.Tick
		want      bool
	}{
		{"bullish inside", models.DirectionBullish, models.Tick{Bid: 1.2030, Ask: 1.2032}, false},
		{"bullish at lower", models.DirectionBullish, models.Tick{Bid: 1.2000, Ask: 1.2002}, true},
		{"bullish below lower", models.DirectionBullish, models.Tick{Bid: 1.1990, Ask: 1.1992}, true},
		{"bearish inside", models.DirectionBearish, models.Tick{Bid: 1.2030, Ask: 1.2032}, false},
		{"bearish at upper", models.DirectionBearish, models.Tick{Bid: 1.2048, Ask: 1.2050}, true},
		{"bearish above upper", models.DirectionBearish, models.Tick{Bid: 1.2058, Ask: 1.2060}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := invalidated(tc.direction, tc.tick, 1.2050, 1.2000)
			if got != tc.want {
				t.Fatalf("invalidated = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWithinTradingHours(t *testing.T) {
	e, _ := newTestEngine(&fakeBroker{})

	cases := []struct {
		clock string
		want  bool
	}{
		{"01:59", false},
		{"02:00", true},
		{"10:30", true},
		{"15:00", true},
		{"15:01", false},
		{"23:00", false},
	}
	for _, tc := range cases {
		parsed, err := time.Parse("15:04", tc.clock)
		if err != nil {
			t.Fatal(err)
		}
		e.now = func() time.Time {
			return time.Date(2024, 5, 1, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
		}
		if got := e.withinTradingHours(); got != tc.want {
			t.Errorf("%s: withinTradingHours = %v, want %v", tc.clock, got, tc.want)
		}
	}
}

func TestWithinTradingHoursBadConfig(t *testing.T) {
	e, _ := newTestEngine(&fakeBroker{})
	e.cfg.Hours.Open = "не время"

	if !e.withinTradingHours() {
		t.Fatal("битое окно должно разрешать торговлю")
	}
}
