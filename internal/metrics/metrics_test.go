package metrics

import (
	"context"
	"testing"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type memStore struct {
	plain    map[string]float64
	labelled map[string]map[string]map[string]float64
	saves    int
	saveErr  error
	loadErr  map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		plain:    map[string]float64{},
		labelled: map[string]map[string]map[string]float64{},
		loadErr:  map[string]error{},
	}
}

func (s *memStore) SaveMetrics(_ context.Context, samples []types.MetricSample) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, sample := range samples {
		if sample.LabelKey == "" && sample.LabelValue == "" {
			s.plain[sample.Name] = sample.Value
			continue
		}
		if s.labelled[sample.Name] == nil {
			s.labelled[sample.Name] = map[string]map[string]float64{}
		}
		if s.labelled[sample.Name][sample.LabelKey] == nil {
			s.labelled[sample.Name][sample.LabelKey] = map[string]float64{}
		}
		s.labelled[sample.Name][sample.LabelKey][sample.LabelValue] = sample.Value
	}
	return nil
}

func (s *memStore) LoadMetric(_ context.Context, name string) (float64, bool, error) {
	if err := s.loadErr[name]; err != nil {
		return 0, false, err
	}
	v, ok := s.plain[name]
	return v, ok, nil
}

func (s *memStore) LoadLabelledMetrics(_ context.Context, name string) ([]types.MetricSample, error) {
	var samples []types.MetricSample
	for key, byValue := range s.labelled[name] {
		for value, v := range byValue {
			samples = append(samples, types.MetricSample{Name: name, LabelKey: key, LabelValue: value, Value: v})
		}
	}
	return samples, nil
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProviderCall("price", "success")
		m.CacheLookup("memory", "hit")
		m.RateLimitWait(time.Second)
		m.SweepFinished(time.Second, 2)
		m.NotificationFailed()
		m.CommandProcessed()
		m.MessageHandled(1, "chat")
		m.Save(context.Background(), newMemStore())
		m.Load(context.Background(), newMemStore())
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ProviderCall("price", "throttled")
	m.ProviderCall("price", "throttled")
	m.CacheLookup("persistent", "hit")
	m.RateLimitWait(1500 * time.Millisecond)
	m.SweepFinished(3*time.Second, 2)
	m.MessageHandled(42, "")
	m.MessageHandled(42, "")

	assert.Equal(t, 2.0, Value(m.ProviderCalls.WithLabelValues("price", "throttled")))
	assert.Equal(t, 1.0, Value(m.CacheLookups.WithLabelValues("persistent", "hit")))
	assert.Equal(t, 1.5, Value(m.RateLimitWaitSeconds))
	assert.Equal(t, 2.0, Value(m.AlertsTriggered))
	assert.Equal(t, 1.0, Value(m.ChannelsCount))
	assert.Equal(t, 2.0, Value(m.MessagesPerChannel.WithLabelValues("42", "PrivateChat-42")))
}

func TestSaveAndLoad(t *testing.T) {
	store := newMemStore()

	m := New(prometheus.NewRegistry())
	m.CommandProcessed()
	m.CommandProcessed()
	m.MessageHandled(7, "group")
	m.SweepFinished(time.Second, 3)
	m.Save(context.Background(), store)

	assert.Equal(t, 2.0, store.plain["commands_processed"])
	assert.Equal(t, 3.0, store.plain["alerts_triggered"])
	assert.Equal(t, 1.0, store.labelled["messages_per_channel"]["7"]["group"])
	assert.Equal(t, 1, store.saves)

	restored := New(prometheus.NewRegistry())
	restored.Load(context.Background(), store)
	assert.Equal(t, 2.0, Value(restored.CommandsProcessed))
	assert.Equal(t, 3.0, Value(restored.AlertsTriggered))
	assert.Equal(t, 1.0, Value(restored.ChannelsCount))
	assert.Equal(t, 1.0, Value(restored.MessagesPerChannel.WithLabelValues("7", "group")))
}

func TestLoadSkipsUnsavedAndFailingCounters(t *testing.T) {
	store := newMemStore()
	store.plain["commands_processed"] = 5
	store.plain["alerts_triggered"] = 0
	store.loadErr["alert_sweeps"] = errors.New("disk I/O error")

	m := New(prometheus.NewRegistry())
	m.Load(context.Background(), store)

	assert.Equal(t, 5.0, Value(m.CommandsProcessed))
	assert.Zero(t, Value(m.AlertsTriggered))
	assert.Zero(t, Value(m.Sweeps))
	assert.Zero(t, Value(m.MessagesHandled))
	assert.Zero(t, Value(m.ChannelsCount))
}

func TestSaveFailureIsLogged(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("database is locked")

	m := New(prometheus.NewRegistry())
	m.CommandProcessed()
	assert.NotPanics(t, func() { m.Save(context.Background(), store) })
	assert.Equal(t, 1, store.saves)
	assert.Empty(t, store.plain)
}
