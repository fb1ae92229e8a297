package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto-alerts-bot/config"
	"crypto-alerts-bot/internal/alert"
	"crypto-alerts-bot/internal/commands"
	"crypto-alerts-bot/internal/database"
	"crypto-alerts-bot/internal/metrics"
	"crypto-alerts-bot/internal/notifier"
	"crypto-alerts-bot/internal/portfolio"
	"crypto-alerts-bot/internal/price"
	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/provider/coingecko"
	"crypto-alerts-bot/internal/provider/paprika"
	"crypto-alerts-bot/internal/ratelimit"
	"crypto-alerts-bot/internal/scheduler"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/telegram"
	"crypto-alerts-bot/lib/translation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const metricsSaveInterval = 5 * time.Minute

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	translation.Configure("locales", config.GetString("lang"))
	log.Debugf("Using language %s", translation.GetLanguage())

	store, err := database.Open(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	m.Load(context.Background(), store)

	p, err := newProvider(config.GetString("provider"))
	if err != nil {
		log.Fatal(err)
	}

	limiter := ratelimit.New(
		config.GetInt("rate_limit_calls"),
		config.GetDuration("rate_limit_window"),
		ratelimit.WithWaitHook(m.RateLimitWait),
	)

	extra, err := symbols.LoadFile(config.GetString("symbols_file"))
	if err != nil {
		log.Fatalf("Failed to load symbol table: %v", err)
	}
	resolver := symbols.NewResolver(p, limiter, extra, config.GetDuration("lookup_timeout"))

	prices := price.NewService(store, resolver, p, limiter, price.Config{
		PersistentTTL: config.GetDuration("persistent_ttl"),
		MemoryTTL:     config.GetDuration("memory_ttl"),
		StaleTTL:      config.GetDuration("stale_ttl"),
		FetchTimeout:  config.GetDuration("fetch_timeout"),
		BatchTimeout:  config.GetDuration("batch_timeout"),
	}, price.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var alertNotifier alert.Notifier = notifier.Noop{}
	token := config.GetString("telegram_bot_token")
	botConfig := telegram.BotConfig{
		Token:          token,
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	}
	if token != "" {
		api, err := telegram.NewAPI(botConfig)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		alertNotifier = notifier.NewTelegram(api, config.GetFloat64("notify_rate"), notifier.DefaultMaxRetries)

		cmds := commands.New(prices, alert.NewManager(store, prices), portfolio.NewService(store, prices), store)
		bot := telegram.NewBot(api, cmds, store, m)
		go bot.Run(ctx, telegram.GetUpdatesChannel(api, botConfig))
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, alerts will only be logged")
	}

	checker := alert.NewChecker(store, prices, alertNotifier,
		alert.WithSpacing(config.GetDuration("sweep_spacing")),
		alert.WithCheckerMetrics(m),
	)
	sweeps := scheduler.New("alert sweep", func(ctx context.Context) error {
		_, err := checker.Sweep(ctx)
		return err
	})
	if err := sweeps.Register(config.GetString("sweep_schedule")); err != nil {
		log.Fatalf("Failed to schedule alert sweep: %v", err)
	}
	sweeps.Start()
	if config.GetBool("run_on_start") {
		go sweeps.RunNow()
	}

	go func() {
		ticker := time.NewTicker(metricsSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Save(ctx, store)
			}
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetInt("metrics_port")),
		Handler: newMetricsAndHealthMux(store),
	}
	go func() {
		log.Infof("Launching metrics and health endpoint on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down...")

	cancel()
	sweeps.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop metrics server: %v", err)
	}

	m.Save(context.Background(), store)
	log.Info("Metrics saved, bye")
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting crypto alerts bot...")
}

func newProvider(name string) (provider.Provider, error) {
	switch strings.ToLower(name) {
	case "", "coingecko":
		var opts []coingecko.Option
		if key := config.GetString("coingecko_api_key"); key != "" {
			opts = append(opts, coingecko.WithAPIKey(key))
		}
		return coingecko.NewClient(opts...), nil
	case "coinpaprika", "paprika":
		return paprika.NewClient(config.GetString("api_pro_key")), nil
	}
	return nil, fmt.Errorf("unknown price provider %q", name)
}

// Pinger is the store health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func newMetricsAndHealthMux(db Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			log.Errorf("Health check failed: %v", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}
