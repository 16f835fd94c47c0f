// Package alerts evaluates user-defined alert rules against market
// data and dispatches notifications when they trigger.
package alerts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marketpulse-backend/models"
)

// Repository is the persistence surface the alert engine depends on
type Repository interface {
	ListActive() ([]models.Alert, error)
	Get(id uint) (*models.Alert, error)
	MarkTriggered(id uint, triggeredAt time.Time) error
	RecordCheck(id uint, value decimal.Decimal, checkedAt time.Time) error
	RecordCheckFailure(id uint, checkErr string, checkedAt time.Time) error
	Reset(id uint) error
	CreateNotification(n *models.Notification) error
	MarkNotificationSent(id uint) error
}

// GormRepository implements Repository on the relational database
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates the database-backed alert repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// ListActive returns every alert eligible for evaluation
func (r *GormRepository) ListActive() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.db.Where("is_active = ?", true).Order("symbol").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// Get returns a single alert by ID
func (r *GormRepository) Get(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.First(&alert, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load alert %d: %w", id, err)
	}
	return &alert, nil
}

// MarkTriggered records a successful trigger: the triggered flag, the
// trigger timestamp, and the counter increment change together.
func (r *GormRepository) MarkTriggered(id uint, triggeredAt time.Time) error {
	result := r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_triggered":      true,
		"last_triggered_at": triggeredAt,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert %d triggered: %w", id, result.Error)
	}
	return nil
}

// RecordCheck stores the observed value of a completed evaluation and
// clears any prior check failure.
func (r *GormRepository) RecordCheck(id uint, value decimal.Decimal, checkedAt time.Time) error {
	result := r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_checked_at": checkedAt,
		"last_value":      value,
		"last_error":      "",
	})
	if result.Error != nil {
		return fmt.Errorf("failed to record check for alert %d: %w", id, result.Error)
	}
	return nil
}

// RecordCheckFailure stores why the last check could not complete. The
// prior observed value is left untouched.
func (r *GormRepository) RecordCheckFailure(id uint, checkErr string, checkedAt time.Time) error {
	result := r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_checked_at": checkedAt,
		"last_error":      checkErr,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to record check failure for alert %d: %w", id, result.Error)
	}
	return nil
}

// Reset re-arms a triggered alert so it may fire again
func (r *GormRepository) Reset(id uint) error {
	result := r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_triggered":      false,
		"last_triggered_at": nil,
		"last_error":        "",
	})
	if result.Error != nil {
		return fmt.Errorf("failed to reset alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}

// CreateNotification persists a notification record
func (r *GormRepository) CreateNotification(n *models.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification for alert %d: %w", n.AlertID, err)
	}
	return nil
}

// MarkNotificationSent flags a notification as handed to its channel
func (r *GormRepository) MarkNotificationSent(id uint) error {
	if err := r.db.Model(&models.Notification{}).Where("id = ?", id).Update("is_sent", true).Error; err != nil {
		return fmt.Errorf("failed to mark notification %d sent: %w", id, err)
	}
	return nil
}
