package config

import (
	"github.com/spf13/viper"
	"sync"
	"time"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("provider", "PRICE_PROVIDER")
		viper.BindEnv("coingecko_api_key", "COINGECKO_API_KEY")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("rate_limit_calls", "RATE_LIMIT_CALLS")
		viper.BindEnv("rate_limit_window", "RATE_LIMIT_WINDOW")
		viper.BindEnv("sweep_schedule", "SWEEP_SCHEDULE")
		viper.BindEnv("sweep_spacing", "SWEEP_SPACING")
		viper.BindEnv("persistent_ttl", "PERSISTENT_TTL")
		viper.BindEnv("memory_ttl", "MEMORY_TTL")
		viper.BindEnv("stale_ttl", "STALE_TTL")
		viper.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
		viper.BindEnv("lookup_timeout", "LOOKUP_TIMEOUT")
		viper.BindEnv("batch_timeout", "BATCH_TIMEOUT")
		viper.BindEnv("symbols_file", "SYMBOLS_FILE")
		viper.BindEnv("notify_rate", "NOTIFY_RATE")
		viper.BindEnv("run_on_start", "RUN_ON_START")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("provider", "coingecko")
		// CoinGecko's free tier allows somewhere between 10 and 50 calls per minute.
		viper.SetDefault("rate_limit_calls", 10)
		viper.SetDefault("rate_limit_window", time.Minute)
		viper.SetDefault("sweep_schedule", "*/15 * * * *")
		viper.SetDefault("sweep_spacing", 2*time.Second)
		viper.SetDefault("persistent_ttl", 10*time.Minute)
		viper.SetDefault("memory_ttl", 5*time.Minute)
		viper.SetDefault("stale_ttl", 60*time.Minute)
		viper.SetDefault("fetch_timeout", 15*time.Second)
		viper.SetDefault("lookup_timeout", 5*time.Second)
		viper.SetDefault("batch_timeout", 20*time.Second)
		viper.SetDefault("notify_rate", 20.0)
		viper.SetDefault("run_on_start", false)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

// GetDuration accepts Go duration strings ("90s", "15m") from the environment.
func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
