package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "crypto_alerts"
	subsystem = "bot"
)

// Metrics holds the bot's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CommandsProcessed    prometheus.Counter
	MessagesHandled      prometheus.Counter
	ChannelsCount        prometheus.Gauge
	MessagesPerChannel   *prometheus.CounterVec
	ProviderCalls        *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec
	RateLimitWaits       prometheus.Counter
	RateLimitWaitSeconds prometheus.Counter
	Sweeps               prometheus.Counter
	SweepDuration        prometheus.Histogram
	AlertsTriggered      prometheus.Counter
	NotificationFailures prometheus.Counter

	mu       sync.Mutex
	channels map[int64]string
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsProcessed: counter("commands_processed", "The total number of processed commands"),
		MessagesHandled:   counter("messages_handled", "The total number of handled messages"),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		MessagesPerChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_per_channel",
			Help:      "The total number of messages handled per channel",
		}, []string{"chat_id", "chat_name"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_calls",
			Help:      "Outbound price provider calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_lookups",
			Help:      "Price cache lookups by tier and result",
		}, []string{"tier", "result"}),
		RateLimitWaits:       counter("rate_limit_waits", "Times a caller slept waiting for the rate limit window"),
		RateLimitWaitSeconds: counter("rate_limit_wait_seconds", "Total seconds spent waiting for the rate limit window"),
		Sweeps:               counter("alert_sweeps", "Completed alert sweeps"),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alert_sweep_duration_seconds",
			Help:      "Duration of alert sweeps",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		AlertsTriggered:      counter("alerts_triggered", "Alerts whose condition was met"),
		NotificationFailures: counter("notification_failures", "Alert notifications that could not be delivered"),
		channels:             make(map[int64]string),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChannelsCount,
		m.MessagesPerChannel,
		m.ProviderCalls,
		m.CacheLookups,
		m.RateLimitWaits,
		m.RateLimitWaitSeconds,
		m.Sweeps,
		m.SweepDuration,
		m.AlertsTriggered,
		m.NotificationFailures,
	)
	return m
}

func (m *Metrics) ProviderCall(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) CacheLookup(tier, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) RateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
	m.RateLimitWaitSeconds.Add(d.Seconds())
}

func (m *Metrics) SweepFinished(d time.Duration, triggered int) {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
	m.SweepDuration.Observe(d.Seconds())
	m.AlertsTriggered.Add(float64(triggered))
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

func (m *Metrics) CommandProcessed() {
	if m == nil {
		return
	}
	m.CommandsProcessed.Inc()
}

// MessageHandled counts a message and tracks the chat it came from.
func (m *Metrics) MessageHandled(chatID int64, chatName string) {
	if m == nil {
		return
	}
	if chatName == "" {
		chatName = fmt.Sprintf("%s-%d", "PrivateChat", chatID)
	}
	m.MessagesHandled.Inc()
	m.MessagesPerChannel.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channels[chatID]; !exists {
		m.channels[chatID] = chatName
		m.ChannelsCount.Set(float64(len(m.channels)))
	}
}

// Value reads the current value of a counter or gauge.
func Value(c prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	c.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}
	switch {
	case metricProto.Counter != nil:
		return metricProto.Counter.GetValue()
	case metricProto.Gauge != nil:
		return metricProto.Gauge.GetValue()
	}
	return 0
}
