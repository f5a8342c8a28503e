package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/models"
	"tradewatch/internal/notify"
	"tradewatch/internal/quote"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertStore is the slice of the Store the engine needs.
type AlertStore interface {
	AlertsToCheck(ctx context.Context) ([]models.Trade, error)
	DeleteTrade(ctx context.Context, id uint) error
}

// Engine periodically checks WATCH alerts against live prices and resolves
// the ones that come within their threshold.
type Engine struct {
	logger   *zap.Logger
	cfg      *config.Config
	prices   quote.PriceSource
	notifier notify.Notifier
	store    AlertStore

	// tickMu serializes ticks: a tick still running makes the next one wait.
	tickMu sync.Mutex
	now    func() time.Time
}

// NewEngine creates a new alert engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, prices quote.PriceSource, notifier notify.Notifier, store AlertStore) *Engine {
	return &Engine{
		logger:   logger.Named("watcher"),
		cfg:      cfg,
		prices:   prices,
		notifier: notifier,
		store:    store,
		now:      time.Now,
	}
}

// Run starts the alert loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Alerts.TickInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting alert loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping alert loop...")
			return
		case <-ticker.C:
			if _, err := e.RunTick(ctx); err != nil {
				e.logger.Error("Alert tick failed", zap.Error(err))
			}
		}
	}
}

// RunTick performs one evaluation pass over every due alert. It waits for a
// tick already in progress. The returned error covers only the alert query;
// per-alert failures are reported in the TickReport.
func (e *Engine) RunTick(ctx context.Context) (*TickReport, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	report := &TickReport{ID: uuid.NewString(), StartedAt: e.now()}
	l := e.logger.With(zap.String("tick_id", report.ID))

	alerts, err := e.store.AlertsToCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load alerts to check: %w", err)
	}
	l.Debug("Checking alerts", zap.Int("count", len(alerts)))

	report.Outcomes = make([]AlertOutcome, len(alerts))

	workers := e.cfg.Alerts.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range alerts {
		if ctx.Err() == nil {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer func() { <-sem }()
					// Each goroutine owns one slot of Outcomes.
					report.Outcomes[i] = e.evaluate(ctx, l, &alerts[i])
				}(i)
				continue
			case <-ctx.Done():
			}
		}
		// Cancelled: the alerts not yet started stay untouched.
		for j := i; j < len(alerts); j++ {
			report.Outcomes[j] = AlertOutcome{AlertID: alerts[j].ID, Ticker: alerts[j].Ticker, Status: StatusSkipped, Err: ctx.Err()}
		}
		l.Warn("Tick cancelled, skipping remaining alerts", zap.Int("skipped", len(alerts)-i))
		break
	}
	wg.Wait()

	report.FinishedAt = e.now()
	report.tally()

	l.Info("Alert tick complete",
		zap.Int("checked", len(alerts)),
		zap.Int("resolved", report.Resolved),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// evaluate checks a single alert. It never panics the tick and never returns
// an error; everything is folded into the outcome.
func (e *Engine) evaluate(ctx context.Context, l *zap.Logger, alert *models.Trade) (out AlertOutcome) {
	out = AlertOutcome{AlertID: alert.ID, Ticker: alert.Ticker, Status: StatusPending}
	l = l.With(zap.Uint("alert_id", alert.ID), zap.String("ticker", alert.Ticker))

	defer func() {
		if r := recover(); r != nil {
			l.Error("Alert evaluation panicked", zap.Any("panic", r))
			out.Status = StatusFailed
			out.Err = fmt.Errorf("alert %d: panic: %v", alert.ID, r)
		}
	}()

	if alert.TargetPrice == nil {
		// AlertsToCheck never returns these, but a nil target cannot trigger.
		return out
	}
	target := *alert.TargetPrice
	out.Target = target

	current, err := e.fetchPrice(ctx, alert.Ticker)
	if err != nil {
		l.Warn("Price fetch failed, skipping alert this tick", zap.Error(err))
		out.Status = StatusSkipped
		out.Err = err
		return out
	}
	out.Price = current

	diff := Distance(current, target)
	threshold := alert.Threshold()
	out.Distance = diff.InexactFloat64()

	if diff.GreaterThan(decimal.NewFromFloat(threshold)) {
		l.Debug("Alert not triggered", zap.Float64("price", current), zap.Float64("target", target), zap.Float64("distance", out.Distance))
		return out
	}

	l.Info("Alert triggered", zap.Float64("price", current), zap.Float64("target", target), zap.Float64("threshold", threshold))

	recipient := ""
	if alert.User != nil {
		recipient = alert.User.NotificationHandle
	}
	message := RenderMessage(alert, current, recipient)

	out.Status = StatusResolved
	if err := e.send(ctx, message, recipient); err != nil {
		// The alert is removed anyway so a dead webhook cannot keep it firing.
		l.Error("Notification delivery failed, removing alert anyway", zap.Error(err))
		out.Status = StatusNotifyFailed
		out.Err = err
	} else {
		out.Notified = true
	}

	if err := e.store.DeleteTrade(ctx, alert.ID); err != nil {
		l.Error("Failed to delete resolved alert, it will be checked again next tick", zap.Error(err))
		out.Status = StatusDeleteFailed
		out.Err = err
		return out
	}
	out.Deleted = true
	return out
}

func (e *Engine) fetchPrice(ctx context.Context, ticker string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout(e.cfg.Quote.Timeout, e.cfg.Quote.MaxRetries))
	defer cancel()
	return e.prices.FetchPrice(ctx, ticker)
}

func (e *Engine) send(ctx context.Context, message, recipient string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout(e.cfg.Notifier.Timeout, 1))
	defer cancel()
	return e.notifier.Send(ctx, message, recipient)
}

// callTimeout bounds one upstream call including its retries. The extra
// attempts allow for the retry backoff of 1s, 2s, 4s...
func callTimeout(seconds, attempts int) time.Duration {
	if seconds <= 0 {
		seconds = 10
	}
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(1<<(attempts-1)-1) * time.Second
	return time.Duration(seconds*attempts)*time.Second + backoff
}

// Distance is |current - target| in decimal arithmetic, so that a price
// exactly on the threshold boundary compares as equal.
func Distance(current, target float64) decimal.Decimal {
	return decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(target)).Abs()
}

// RenderMessage formats the notification text for a triggered alert,
// mentioning the recipient when a handle is set.
func RenderMessage(alert *models.Trade, current float64, recipient string) string {
	var b strings.Builder
	if recipient != "" {
		fmt.Fprintf(&b, "<@%s> ", recipient)
	}
	target := 0.0
	if alert.TargetPrice != nil {
		target = *alert.TargetPrice
	}
	fmt.Fprintf(&b, "%s (%s) is at %s, target %s",
		alert.DisplayName(), alert.Ticker,
		decimal.NewFromFloat(current).String(), decimal.NewFromFloat(target).String())
	return b.String()
}
