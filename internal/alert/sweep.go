package alert

import (
	"bytes"
	"context"
	"runtime"
	"time"

	"crypto-alerts-bot/internal/metrics"
	"crypto-alerts-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultSpacing = 2 * time.Second

type SweepStore interface {
	GetAllActiveAlerts(ctx context.Context) ([]types.ActiveAlert, error)
	DeactivateAlert(ctx context.Context, id int64, at time.Time) (bool, error)
}

type PriceSource interface {
	GetBatchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
	GetPrice(ctx context.Context, symbol string) (types.Quote, error)
	Persist(ctx context.Context, symbol string, price decimal.Decimal, at time.Time)
}

// Notifier delivers a triggered alert to its owner.
type Notifier interface {
	SendThresholdAlert(ctx context.Context, contact, symbol string, current, target decimal.Decimal, alertType types.AlertType) error
}

// SweepReport summarises one sweep.
type SweepReport struct {
	RunID              string
	Alerts             int
	Symbols            int
	BatchPriced        int
	IndividualPriced   int
	Skipped            int
	Failed             int
	Triggered          int
	NotifyFailures     int
	DeactivateFailures int
	Duration           time.Duration
}

// Checker evaluates every active alert against current prices.
type Checker struct {
	store    SweepStore
	prices   PriceSource
	notifier Notifier
	metrics  *metrics.Metrics
	spacing  time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

type CheckerOption func(*Checker)

// WithSpacing sets the pause after each individually fetched symbol.
func WithSpacing(d time.Duration) CheckerOption {
	return func(c *Checker) { c.spacing = d }
}

func WithCheckerMetrics(m *metrics.Metrics) CheckerOption {
	return func(c *Checker) { c.metrics = m }
}

func WithCheckerClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) CheckerOption {
	return func(c *Checker) {
		c.now = now
		c.sleep = sleep
	}
}

func NewChecker(store SweepStore, prices PriceSource, notifier Notifier, opts ...CheckerOption) *Checker {
	c := &Checker{
		store:    store,
		prices:   prices,
		notifier: notifier,
		spacing:  DefaultSpacing,
		now:      time.Now,
		sleep:    pause,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sweep runs one pass over all active alerts. Symbols are handled one at a time and a
// failure on one symbol never stops the others.
func (c *Checker) Sweep(ctx context.Context) (SweepReport, error) {
	start := c.now()
	report := SweepReport{RunID: uuid.NewString()}
	logger := log.WithField("run_id", report.RunID)

	alerts, err := c.store.GetAllActiveAlerts(ctx)
	if err != nil {
		return report, errors.Wrap(err, "load active alerts")
	}
	report.Alerts = len(alerts)
	if len(alerts) == 0 {
		logger.Debug("No active alerts, skipping sweep.")
		return report, nil
	}

	order, groups := groupBySymbol(alerts)
	report.Symbols = len(order)
	logger.Debugf("Checking %d alerts across %d symbols...", len(alerts), len(order))

	batch := c.prices.GetBatchPrices(ctx, order)

	for _, symbol := range order {
		if ctx.Err() != nil {
			logger.Warnf("Sweep interrupted: %v", ctx.Err())
			break
		}
		c.checkSymbol(ctx, logger, symbol, groups[symbol], batch, &report)
	}

	report.Duration = c.now().Sub(start)
	c.metrics.SweepFinished(report.Duration, report.Triggered)
	logger.WithFields(log.Fields{
		"alerts":    report.Alerts,
		"symbols":   report.Symbols,
		"batch":     report.BatchPriced,
		"single":    report.IndividualPriced,
		"skipped":   report.Skipped,
		"triggered": report.Triggered,
		"duration":  report.Duration.Round(time.Millisecond),
	}).Info("Alert sweep completed.")
	return report, nil
}

func (c *Checker) checkSymbol(ctx context.Context, logger *log.Entry, symbol string, alerts []types.ActiveAlert,
	batch map[string]decimal.Decimal, report *SweepReport) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			logger.Errorf("Recovered from panic while checking %s: %v\nStack trace: %s",
				symbol, r, bytes.TrimRight(stackBuf[:stackSize], "\x00"))
			report.Failed++
		}
	}()

	price, ok := batch[symbol]
	at := c.now()
	if ok {
		report.BatchPriced++
	} else {
		q, err := c.prices.GetPrice(ctx, symbol)
		c.sleep(ctx, c.spacing)
		if err != nil {
			logger.Warnf("No price for %s, %d alerts wait for the next sweep: %v", symbol, len(alerts), err)
			report.Skipped++
			return
		}
		price, at = q.Price, q.UpdatedAt
		report.IndividualPriced++
	}

	c.prices.Persist(ctx, symbol, price, at)

	for _, a := range alerts {
		if !ShouldTrigger(a.AlertType, price, a.TargetPrice) {
			continue
		}
		report.Triggered++
		logger.Infof("Alert %d triggered: %s %s %s (current %s)", a.ID, symbol, a.AlertType, a.TargetPrice, price)

		if err := c.notifier.SendThresholdAlert(ctx, a.Contact, symbol, price, a.TargetPrice, a.AlertType); err != nil {
			report.NotifyFailures++
			c.metrics.NotificationFailed()
			logger.Errorf("Failed to notify %s about alert %d: %v", a.Contact, a.ID, err)
		}

		changed, err := c.store.DeactivateAlert(ctx, a.ID, c.now())
		if err != nil {
			report.DeactivateFailures++
			logger.Errorf("Failed to deactivate alert %d: %v", a.ID, err)
			continue
		}
		if !changed {
			logger.Debugf("Alert %d was already inactive", a.ID)
		}
	}
}

// groupBySymbol partitions alerts by symbol, keeping first-seen symbol order.
func groupBySymbol(alerts []types.ActiveAlert) ([]string, map[string][]types.ActiveAlert) {
	var order []string
	groups := make(map[string][]types.ActiveAlert)
	for _, a := range alerts {
		if _, exists := groups[a.Symbol]; !exists {
			order = append(order, a.Symbol)
		}
		groups[a.Symbol] = append(groups[a.Symbol], a)
	}
	return order, groups
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
