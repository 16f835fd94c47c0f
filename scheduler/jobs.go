package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"marketpulse-backend/models"
	"marketpulse-backend/services/alerts"
)

// Scheduler manages the recurring alert and maintenance jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	db       *gorm.DB
	engine   *alerts.Engine
	market   alerts.MarketData
	interval int

	mu      sync.RWMutex
	running bool
}

// NewScheduler creates a scheduler; intervalSeconds is the tick period
func NewScheduler(db *gorm.DB, engine *alerts.Engine, market alerts.MarketData, intervalSeconds int) *Scheduler {
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		db:       db,
		engine:   engine,
		market:   market,
		interval: intervalSeconds,
	}
}

// Start registers and starts all scheduled jobs. SingletonMode on the
// check job means a tick that overruns the interval is skipped rather
// than stacked; the engine guards against overlap as well.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	log.Println("Starting scheduler...")

	s.cron.Every(s.interval).Seconds().SingletonMode().Do(func() {
		if err := s.engine.RunCheck(context.Background()); err != nil {
			log.Printf("Alert check cycle failed: %v", err)
		}
	})

	// Refresh stored history for alerted symbols daily at 22:00 UTC,
	// after the US session closes
	s.cron.Every(1).Day().At("22:00").Do(func() {
		s.refreshAlertedHistory()
	})

	// Cleanup old read notifications weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupOldNotifications()
	})

	s.cron.StartAsync()
	s.running = true
	log.Printf("Scheduler started (check interval: %ds)", s.interval)
}

// Stop stops all scheduled jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	log.Println("Scheduler stopped")
}

// IsRunning reports whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ForceCheck runs an immediate check cycle outside the schedule
func (s *Scheduler) ForceCheck(ctx context.Context) error {
	return s.engine.RunCheck(ctx)
}

// refreshAlertedHistory warms the local history store for every symbol
// with an active indicator-backed alert, so indicator conditions keep
// evaluating when providers have a bad day.
func (s *Scheduler) refreshAlertedHistory() {
	log.Println("Refreshing stored history for alerted symbols...")

	var alertRows []models.Alert
	if err := s.db.Where("is_active = ?", true).Find(&alertRows).Error; err != nil {
		log.Printf("Error loading alerts for history refresh: %v", err)
		return
	}

	seen := make(map[string]bool)
	refreshed := 0
	for _, alert := range alertRows {
		if !alert.Condition.NeedsIndicators() || seen[alert.Symbol] {
			continue
		}
		seen[alert.Symbol] = true

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := s.market.GetHistory(ctx, alert.Symbol, alerts.HistoryDays)
		cancel()
		if err != nil {
			log.Printf("Error refreshing history for %s: %v", alert.Symbol, err)
			continue
		}
		refreshed++

		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Refreshed history for %d symbols", refreshed)
}

// cleanupOldNotifications removes read notifications older than 30 days
func (s *Scheduler) cleanupOldNotifications() {
	log.Println("Cleaning up old notifications...")

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	result := s.db.Where("is_read = ? AND created_at < ?", true, thirtyDaysAgo).
		Delete(&models.Notification{})
	if result.Error != nil {
		log.Printf("Error cleaning up old notifications: %v", result.Error)
		return
	}

	log.Printf("Cleanup completed (%d notifications removed)", result.RowsAffected)
}
