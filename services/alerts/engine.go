package alerts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse-backend/models"
	"marketpulse-backend/services/indicators"
)

// HistoryDays is how many daily bars are fetched for indicator-backed
// conditions. 90 bars covers the longest lookback (ADX needs 29).
const HistoryDays = 90

// MarketData is the market-access surface the engine depends on
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error)
}

// NotificationArchive mirrors notifications to long-term storage
type NotificationArchive interface {
	IsConfigured() bool
	SaveNotification(n *models.Notification) error
}

// Engine evaluates active alerts against fresh market data on each
// check cycle and dispatches notifications for triggers.
type Engine struct {
	repo      Repository
	market    MarketData
	notifiers []Notifier
	archive   NotificationArchive

	workers      int
	requestDelay time.Duration
	now          func() time.Time

	mu      sync.Mutex
	ticking bool

	statsMu       sync.RWMutex
	lastRunAt     time.Time
	lastRunChecks int
	lastRunFires  int
}

// NewEngine creates the alert engine. archive may be nil.
func NewEngine(repo Repository, market MarketData, notifiers []Notifier, archive NotificationArchive, workers int, requestDelay time.Duration) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		repo:         repo,
		market:       market,
		notifiers:    notifiers,
		archive:      archive,
		workers:      workers,
		requestDelay: requestDelay,
		now:          time.Now,
	}
}

// RunCheck executes one check cycle over all active alerts. A cycle
// already in progress makes the call a no-op so ticks never overlap.
func (e *Engine) RunCheck(ctx context.Context) error {
	e.mu.Lock()
	if e.ticking {
		e.mu.Unlock()
		log.Println("Alert check already in progress, skipping tick")
		return nil
	}
	e.ticking = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.ticking = false
		e.mu.Unlock()
	}()

	alerts, err := e.repo.ListActive()
	if err != nil {
		return fmt.Errorf("alert check cycle: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	log.Printf("Checking %d active alerts", len(alerts))
	started := e.now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	var fired sync.Map

	for i := range alerts {
		alert := alerts[i]

		// Repeat gate: a one-shot alert stays suppressed until reset
		if alert.IsTriggered && !alert.Repeat {
			continue
		}
		// Cooldown gate: skip the whole evaluation inside the window
		if alert.CooldownActive(e.now()) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(a models.Alert) {
			defer wg.Done()
			defer func() { <-sem }()

			if triggered := e.checkAlert(ctx, &a); triggered {
				fired.Store(a.ID, true)
			}

			// Small delay between requests to respect provider limits
			if e.requestDelay > 0 {
				time.Sleep(e.requestDelay)
			}
		}(alert)
	}

	wg.Wait()

	fireCount := 0
	fired.Range(func(_, _ interface{}) bool {
		fireCount++
		return true
	})

	e.statsMu.Lock()
	e.lastRunAt = started
	e.lastRunChecks = len(alerts)
	e.lastRunFires = fireCount
	e.statsMu.Unlock()

	log.Printf("Alert check cycle complete: %d checked, %d triggered (%v)",
		len(alerts), fireCount, time.Since(started).Round(time.Millisecond))
	return nil
}

// checkAlert fetches data, evaluates one alert, and handles a trigger.
// Errors are isolated: a failure here never aborts the cycle.
func (e *Engine) checkAlert(ctx context.Context, alert *models.Alert) bool {
	quote, snap, err := e.fetchMarketData(ctx, alert)
	if err != nil {
		log.Printf("Alert %d (%s): check failed: %v", alert.ID, alert.Symbol, err)
		if dbErr := e.repo.RecordCheckFailure(alert.ID, err.Error(), e.now()); dbErr != nil {
			log.Printf("Alert %d: failed to record check failure: %v", alert.ID, dbErr)
		}
		return false
	}

	eval := Evaluate(alert, quote, snap)

	// The observed value is recorded whether or not anything fired
	observed := decimal.NewFromFloat(eval.Observed)
	if err := e.repo.RecordCheck(alert.ID, observed, e.now()); err != nil {
		log.Printf("Alert %d: failed to record check: %v", alert.ID, err)
	}

	if !eval.Triggered {
		return false
	}

	e.handleTrigger(alert, quote, eval)
	return true
}

// fetchMarketData gets the quote and, when the condition needs them,
// the indicator snapshot.
func (e *Engine) fetchMarketData(ctx context.Context, alert *models.Alert) (*models.Quote, *indicators.Snapshot, error) {
	quote, err := e.market.GetQuote(ctx, alert.Symbol)
	if err != nil {
		return nil, nil, err
	}

	var snap *indicators.Snapshot
	if alert.Condition.NeedsIndicators() {
		points, err := e.market.GetHistory(ctx, alert.Symbol, HistoryDays)
		if err != nil {
			return nil, nil, fmt.Errorf("history for %s: %w", alert.Symbol, err)
		}
		snap = indicators.Compute(points)
	}
	return quote, snap, nil
}

// handleTrigger persists trigger state, creates exactly one
// notification, and dispatches it. Delivery failures are logged only;
// they never roll back the trigger.
func (e *Engine) handleTrigger(alert *models.Alert, quote *models.Quote, eval Evaluation) {
	triggeredAt := e.now()

	if err := e.repo.MarkTriggered(alert.ID, triggeredAt); err != nil {
		log.Printf("Alert %d: failed to persist trigger: %v", alert.ID, err)
		return
	}

	notification := &models.Notification{
		AlertID:        alert.ID,
		Symbol:         alert.Symbol,
		Title:          buildNotificationTitle(alert, eval),
		Message:        eval.Message,
		TriggeredValue: decimal.NewFromFloat(eval.Observed),
		TargetValue:    alert.TargetValue,
		Channel:        models.ChannelInApp,
		CreatedAt:      triggeredAt,
	}
	if err := e.repo.CreateNotification(notification); err != nil {
		log.Printf("Alert %d: failed to create notification: %v", alert.ID, err)
		return
	}

	log.Printf("Alert %d triggered: %s (source %s, real-time %v)",
		alert.ID, notification.Title, quote.Source, quote.IsRealTime)

	e.dispatch(notification, alert)

	if e.archive != nil && e.archive.IsConfigured() {
		if err := e.archive.SaveNotification(notification); err != nil {
			log.Printf("Warning: failed to archive notification %d: %v", notification.ID, err)
		}
	}
}

// dispatch forwards the notification to each channel the alert asked
// for. The in-app channel is always attempted.
func (e *Engine) dispatch(n *models.Notification, alert *models.Alert) {
	delivered := false
	for _, notifier := range e.notifiers {
		switch notifier.Channel() {
		case models.ChannelEmail:
			if !alert.NotifyEmail {
				continue
			}
		case models.ChannelPush:
			if !alert.NotifyPush {
				continue
			}
		}

		if err := notifier.Send(n, alert); err != nil {
			log.Printf("Notification %d: %s delivery failed: %v", n.ID, notifier.Channel(), err)
			continue
		}
		delivered = true
	}

	if delivered {
		if err := e.repo.MarkNotificationSent(n.ID); err != nil {
			log.Printf("Notification %d: failed to mark sent: %v", n.ID, err)
		}
	}
}

// TestAlert runs a one-off evaluation for a single alert without
// mutating any trigger state or creating notifications.
func (e *Engine) TestAlert(ctx context.Context, id uint) (*Evaluation, *models.Quote, error) {
	alert, err := e.repo.Get(id)
	if err != nil {
		return nil, nil, err
	}

	quote, snap, err := e.fetchMarketData(ctx, alert)
	if err != nil {
		return nil, nil, err
	}

	eval := Evaluate(alert, quote, snap)
	return &eval, quote, nil
}

// Status returns engine statistics for the control endpoints
func (e *Engine) Status() map[string]interface{} {
	e.mu.Lock()
	ticking := e.ticking
	e.mu.Unlock()

	e.statsMu.RLock()
	defer e.statsMu.RUnlock()

	status := map[string]interface{}{
		"tick_in_progress": ticking,
		"workers":          e.workers,
		"last_run_checks":  e.lastRunChecks,
		"last_run_fires":   e.lastRunFires,
	}
	if !e.lastRunAt.IsZero() {
		status["last_run_at"] = e.lastRunAt.Format(time.RFC3339)
	}
	return status
}
