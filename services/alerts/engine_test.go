package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse-backend/models"
)

// memRepo is an in-memory Repository for engine tests
type memRepo struct {
	mu            sync.Mutex
	alerts        map[uint]*models.Alert
	notifications []*models.Notification
	nextNotifID   uint
}

func newMemRepo(alerts ...*models.Alert) *memRepo {
	r := &memRepo{alerts: make(map[uint]*models.Alert)}
	for _, a := range alerts {
		r.alerts[a.ID] = a
	}
	return r
}

func (r *memRepo) ListActive() ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.alerts {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) Get(id uint) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %d not found", id)
	}
	copied := *a
	return &copied, nil
}

func (r *memRepo) MarkTriggered(id uint, triggeredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.alerts[id]
	a.IsTriggered = true
	ts := triggeredAt
	a.LastTriggeredAt = &ts
	a.TriggerCount++
	return nil
}

func (r *memRepo) RecordCheck(id uint, value decimal.Decimal, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.alerts[id]
	ts := checkedAt
	a.LastCheckedAt = &ts
	a.LastValue = value
	a.LastError = ""
	return nil
}

func (r *memRepo) RecordCheckFailure(id uint, checkErr string, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.alerts[id]
	ts := checkedAt
	a.LastCheckedAt = &ts
	a.LastError = checkErr
	return nil
}

func (r *memRepo) Reset(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return fmt.Errorf("alert %d not found", id)
	}
	a.IsTriggered = false
	a.LastTriggeredAt = nil
	a.LastError = ""
	return nil
}

func (r *memRepo) CreateNotification(n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextNotifID++
	n.ID = r.nextNotifID
	copied := *n
	r.notifications = append(r.notifications, &copied)
	return nil
}

func (r *memRepo) MarkNotificationSent(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.IsSent = true
		}
	}
	return nil
}

func (r *memRepo) notificationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

// memMarket serves a settable price per symbol
type memMarket struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
}

func newMemMarket() *memMarket {
	return &memMarket{prices: make(map[string]float64), errs: make(map[string]error)}
}

func (m *memMarket) setPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *memMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	return &models.Quote{Symbol: symbol, Price: m.prices[symbol], Source: "test"}, nil
}

func (m *memMarket) GetHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	return nil, errors.New("history not stubbed")
}

type recordingNotifier struct {
	mu      sync.Mutex
	channel string
	sent    []*models.Notification
	fail    bool
}

func (n *recordingNotifier) Channel() string { return n.channel }

func (n *recordingNotifier) Send(notif *models.Notification, alert *models.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("%w: simulated outage", ErrDeliveryFailed)
	}
	n.sent = append(n.sent, notif)
	return nil
}

func newTestEngine(repo Repository, market MarketData, notifiers ...Notifier) *Engine {
	return NewEngine(repo, market, notifiers, nil, 2, 0)
}

func TestEnginePriceAboveScenario(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: true,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	inApp := &recordingNotifier{channel: models.ChannelInApp}
	engine := newTestEngine(repo, market, inApp)

	// Quote sequence 95 -> 98 -> 101 -> 99: exactly one trigger
	for _, price := range []float64{95, 98} {
		market.setPrice("X", price)
		require.NoError(t, engine.RunCheck(context.Background()))
		assert.Zero(t, repo.notificationCount())
	}

	market.setPrice("X", 101)
	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 1, repo.notificationCount())

	state, _ := repo.Get(1)
	assert.True(t, state.IsTriggered)
	assert.Equal(t, 1, state.TriggerCount)

	market.setPrice("X", 99)
	require.NoError(t, engine.RunCheck(context.Background()))

	state, _ = repo.Get(1)
	assert.Equal(t, 1, repo.notificationCount(), "fourth tick must not re-trigger")
	assert.Equal(t, 1, state.TriggerCount)
	lastValue, _ := state.LastValue.Float64()
	assert.InDelta(t, 99.0, lastValue, 1e-9, "last observed value recorded even without trigger")
}

func TestEngineCooldownGate(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true,
		Repeat: true, CooldownMinutes: 60,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	market.setPrice("X", 101)
	engine := newTestEngine(repo, market)

	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	current := base
	engine.now = func() time.Time { return current }

	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 1, repo.notificationCount())

	// Condition still true 30 minutes later: inside the cooldown window
	current = base.Add(30 * time.Minute)
	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 1, repo.notificationCount(), "re-evaluation inside cooldown must not notify")

	// 61 minutes later the window has elapsed
	current = base.Add(61 * time.Minute)
	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 2, repo.notificationCount())
}

func TestEngineRepeatFalseSuppression(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: false,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	market.setPrice("X", 101)
	engine := newTestEngine(repo, market)

	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 1, repo.notificationCount())

	// The condition stays true but the alert stays suppressed
	for i := 0; i < 3; i++ {
		require.NoError(t, engine.RunCheck(context.Background()))
	}
	assert.Equal(t, 1, repo.notificationCount())

	// An explicit reset re-arms it
	require.NoError(t, repo.Reset(1))
	require.NoError(t, engine.RunCheck(context.Background()))
	assert.Equal(t, 2, repo.notificationCount())
}

func TestEngineIsolatesPerAlertFailures(t *testing.T) {
	broken := &models.Alert{
		ID: 1, Symbol: "DOWN", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: true,
	}
	healthy := &models.Alert{
		ID: 2, Symbol: "UP", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: true,
	}
	repo := newMemRepo(broken, healthy)
	market := newMemMarket()
	market.errs["DOWN"] = errors.New("provider down")
	market.setPrice("UP", 150)
	engine := newTestEngine(repo, market)

	require.NoError(t, engine.RunCheck(context.Background()))

	assert.Equal(t, 1, repo.notificationCount(), "healthy alert still fires")

	failed, _ := repo.Get(1)
	assert.Contains(t, failed.LastError, "provider down")
	assert.False(t, failed.IsTriggered)

	ok, _ := repo.Get(2)
	assert.True(t, ok.IsTriggered)
	assert.Empty(t, ok.LastError)
}

func TestEngineDeliveryFailureDoesNotRollBackTrigger(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: true,
		NotifyEmail: true,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	market.setPrice("X", 120)
	failing := &recordingNotifier{channel: models.ChannelEmail, fail: true}
	engine := newTestEngine(repo, market, failing)

	require.NoError(t, engine.RunCheck(context.Background()))

	state, _ := repo.Get(1)
	assert.True(t, state.IsTriggered)
	assert.Equal(t, 1, repo.notificationCount())
	assert.False(t, repo.notifications[0].IsSent, "failed delivery leaves notification unsent")
}

func TestEngineDispatchHonorsChannelPreferences(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true, Repeat: true,
		NotifyEmail: false, NotifyPush: true,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	market.setPrice("X", 120)

	email := &recordingNotifier{channel: models.ChannelEmail}
	push := &recordingNotifier{channel: models.ChannelPush}
	inApp := &recordingNotifier{channel: models.ChannelInApp}
	engine := newTestEngine(repo, market, email, push, inApp)

	require.NoError(t, engine.RunCheck(context.Background()))

	assert.Empty(t, email.sent, "email disabled on the alert")
	assert.Len(t, push.sent, 1)
	assert.Len(t, inApp.sent, 1, "in-app is always attempted")
}

func TestEngineTestAlertDoesNotMutate(t *testing.T) {
	alert := &models.Alert{
		ID: 1, Symbol: "X", Condition: models.ConditionPriceAbove,
		TargetValue: decimal.NewFromInt(100), IsActive: true,
	}
	repo := newMemRepo(alert)
	market := newMemMarket()
	market.setPrice("X", 150)
	engine := newTestEngine(repo, market)

	eval, quote, err := engine.TestAlert(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, eval.Triggered)
	assert.Equal(t, 150.0, quote.Price)

	state, _ := repo.Get(1)
	assert.False(t, state.IsTriggered, "test evaluation must not persist a trigger")
	assert.Zero(t, state.TriggerCount)
	assert.Zero(t, repo.notificationCount())
}
