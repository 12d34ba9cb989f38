package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Terminal TerminalConfig
	Bot      BotConfig
	Hours    HoursConfig
	Telegram TelegramConfig
	Runtime  RuntimeConfig
}

type TerminalConfig struct {
	BaseUrl string
	WSUrl   string
	ApiKey  string
	Secret  string
}

type BotConfig struct {
	Symbols         []string
	Strategy        string
	BaseRisk        float64
	TargetRR        float64
	ATRPeriod       int
	ATRMultiplier   float64
	SignalTimeframe string
	EntryTimeframe  string
	ExpiryMinutes   int
	HistoryDays     int
}

type HoursConfig struct {
	Timezone string
	Open     string
	Close    string
}

type TelegramConfig struct {
	Token   string
	ChatIDs []string
}

type RuntimeConfig struct {
	SymbolDelayMs int
	CycleDelayMs  int
	Log           LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func Load() (*Config, error) {

	cfg := &Config{}
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	viper.ReadInConfig()

	cfg.Terminal = TerminalConfig{
		BaseUrl: viper.GetString("terminal.base_url"),
		WSUrl:   viper.GetString("terminal.ws_url"),
		ApiKey:  envSub("terminal.api_key"),
		Secret:  envSub("terminal.secret"),
	}

	cfg.Bot = BotConfig{
		Symbols:         viper.GetStringSlice("bot.symbols"),
		Strategy:        viper.GetString("bot.strategy"),
		BaseRisk:        viper.GetFloat64("bot.base_risk"),
		TargetRR:        viper.GetFloat64("bot.target_rr"),
		ATRPeriod:       viper.GetInt("bot.atr_period"),
		ATRMultiplier:   viper.GetFloat64("bot.atr_multiplier"),
		SignalTimeframe: viper.GetString("bot.signal_timeframe"),
		EntryTimeframe:  viper.GetString("bot.entry_timeframe"),
		ExpiryMinutes:   viper.GetInt("bot.expiry_minutes"),
		HistoryDays:     viper.GetInt("bot.history_days"),
	}

	cfg.Hours = HoursConfig{
		Timezone: viper.GetString("hours.timezone"),
		Open:     viper.GetString("hours.open"),
		Close:    viper.GetString("hours.close"),
	}

	cfg.Telegram = TelegramConfig{
		Token:   envSub("telegram.token"),
		ChatIDs: viper.GetStringSlice("telegram.chat_ids"),
	}

	cfg.Runtime = RuntimeConfig{
		SymbolDelayMs: viper.GetInt("runtime.symbol_delay_ms"),
		CycleDelayMs:  viper.GetInt("runtime.cycle_delay_ms"),
		Log: LogConfig{
			Level:      viper.GetString("runtime.log.level"),
			Format:     viper.GetString("runtime.log.format"),
			File:       viper.GetString("runtime.log.file"),
			MaxSize:    viper.GetInt("runtime.log.max_size"),
			MaxBackups: viper.GetInt("runtime.log.max_backups"),
			MaxAge:     viper.GetInt("runtime.log.max_age"),
			Compress:   viper.GetBool("runtime.log.compress"),
		},
	}

	return cfg, nil
}

func envSub(key string) string {
	val := viper.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
