package metrics

import (
	"context"
	"strconv"

	"crypto-alerts-bot/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const perChannel = "messages_per_channel"

// Store persists counter values across restarts.
type Store interface {
	SaveMetrics(ctx context.Context, samples []types.MetricSample) error
	// LoadMetric reports found=false when the counter was never saved.
	LoadMetric(ctx context.Context, name string) (value float64, found bool, err error)
	LoadLabelledMetrics(ctx context.Context, name string) ([]types.MetricSample, error)
}

func (m *Metrics) plain() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"commands_processed":    m.CommandsProcessed,
		"messages_handled":      m.MessagesHandled,
		"alerts_triggered":      m.AlertsTriggered,
		"alert_sweeps":          m.Sweeps,
		"notification_failures": m.NotificationFailures,
		"rate_limit_waits":      m.RateLimitWaits,
	}
}

// Load restores persisted counters. It should run once, before traffic.
func (m *Metrics) Load(ctx context.Context, store Store) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.plain() {
		value, found, err := store.LoadMetric(ctx, name)
		if err != nil {
			log.Errorf("Failed to load metric %s: %v", name, err)
			continue
		}
		if !found {
			log.Debugf("Metric %s not saved yet, starting from 0", name)
			continue
		}
		c.Add(value)
	}

	samples, err := store.LoadLabelledMetrics(ctx, perChannel)
	if err != nil {
		log.Errorf("Failed to load %s: %v", perChannel, err)
	}
	for _, sample := range samples {
		chatID, err := strconv.ParseInt(sample.LabelKey, 10, 64)
		if err != nil {
			log.Errorf("Failed to parse chatID %s: %v", sample.LabelKey, err)
			continue
		}
		m.MessagesPerChannel.WithLabelValues(sample.LabelKey, sample.LabelValue).Add(sample.Value)
		m.channels[chatID] = sample.LabelValue
	}
	m.ChannelsCount.Set(float64(len(m.channels)))

	log.Info("Metrics loaded from database.")
}

// Save writes the current counter values to store as one snapshot.
func (m *Metrics) Save(ctx context.Context, store Store) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var samples []types.MetricSample
	for name, c := range m.plain() {
		samples = append(samples, types.MetricSample{Name: name, Value: Value(c)})
	}

	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		m.MessagesPerChannel.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read MessagesPerChannel metric: %v", err)
			continue
		}
		sample := types.MetricSample{Name: perChannel, Value: metricProto.Counter.GetValue()}
		for _, label := range metricProto.Label {
			switch label.GetName() {
			case "chat_id":
				sample.LabelKey = label.GetValue()
			case "chat_name":
				sample.LabelValue = label.GetValue()
			}
		}
		samples = append(samples, sample)
	}

	if err := store.SaveMetrics(ctx, samples); err != nil {
		log.Errorf("Failed to save metrics: %v", err)
		return
	}
	log.Debug("Metrics saved to database.")
}
