package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertCondition represents the condition kind an alert evaluates
type AlertCondition string

const (
	ConditionPriceAbove         AlertCondition = "price_above"
	ConditionPriceBelow         AlertCondition = "price_below"
	ConditionPriceChangePercent AlertCondition = "price_change_percent"
	ConditionRSIOverbought      AlertCondition = "rsi_overbought"
	ConditionRSIOversold        AlertCondition = "rsi_oversold"
	ConditionMACDCrossover      AlertCondition = "macd_crossover"
	ConditionMACDCrossunder     AlertCondition = "macd_crossunder"
	ConditionEMACross           AlertCondition = "ema_cross"
	ConditionBollingerUpper     AlertCondition = "bollinger_upper"
	ConditionBollingerLower     AlertCondition = "bollinger_lower"

	// ConditionVolumeSpike compares current volume against the 20-bar
	// average. Crypto history bars carry no per-bar volume (CoinGecko's
	// OHLC endpoint omits it), so crypto alerts of this kind report no
	// baseline rather than a ratio.
	ConditionVolumeSpike AlertCondition = "volume_spike"
)

// String returns the string representation of AlertCondition
func (c AlertCondition) String() string {
	return string(c)
}

// NeedsIndicators reports whether evaluating the condition requires
// history-derived indicators in addition to a fresh quote.
func (c AlertCondition) NeedsIndicators() bool {
	switch c {
	case ConditionRSIOverbought, ConditionRSIOversold,
		ConditionMACDCrossover, ConditionMACDCrossunder,
		ConditionEMACross, ConditionBollingerUpper,
		ConditionBollingerLower, ConditionVolumeSpike:
		return true
	}
	return false
}

// ValidAlertConditions returns all supported condition kinds
func ValidAlertConditions() []AlertCondition {
	return []AlertCondition{
		ConditionPriceAbove,
		ConditionPriceBelow,
		ConditionPriceChangePercent,
		ConditionRSIOverbought,
		ConditionRSIOversold,
		ConditionMACDCrossover,
		ConditionMACDCrossunder,
		ConditionEMACross,
		ConditionBollingerUpper,
		ConditionBollingerLower,
		ConditionVolumeSpike,
	}
}

// IsValidAlertCondition checks if the condition kind is supported
func IsValidAlertCondition(condition string) bool {
	for _, valid := range ValidAlertConditions() {
		if AlertCondition(condition) == valid {
			return true
		}
	}
	return false
}

// Alert represents a user-defined alert rule evaluated on every check cycle.
// The trigger fields (IsTriggered, LastTriggeredAt, TriggerCount) are written
// only by the alert engine; LastTriggeredAt changes only together with
// IsTriggered=true and a TriggerCount increment.
type Alert struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"index" json:"user_id"`
	Symbol          string          `gorm:"index;not null" json:"symbol"`
	AssetClass      AssetClass      `gorm:"type:varchar(10);default:'equity'" json:"asset_class"`
	Condition       AlertCondition  `gorm:"type:varchar(30);not null" json:"condition"`
	TargetValue     decimal.Decimal `gorm:"type:decimal(18,6)" json:"target_value"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
	IsTriggered     bool            `gorm:"default:false" json:"is_triggered"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at"`
	TriggerCount    int             `gorm:"default:0" json:"trigger_count"`
	CooldownMinutes int             `gorm:"default:60" json:"cooldown_minutes"`
	Repeat          bool            `gorm:"default:false" json:"repeat"`
	LastCheckedAt   *time.Time      `json:"last_checked_at"`
	LastValue       decimal.Decimal `gorm:"type:decimal(18,6)" json:"last_value"`
	LastError       string          `json:"last_error"` // last check failure, cleared on success
	NotifyEmail     bool            `gorm:"default:true" json:"notify_email"`
	NotifyPush      bool            `gorm:"default:false" json:"notify_push"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CooldownActive reports whether the alert is still inside its cooldown
// window relative to now.
func (a *Alert) CooldownActive(now time.Time) bool {
	if a.LastTriggeredAt == nil || a.CooldownMinutes <= 0 {
		return false
	}
	return now.Sub(*a.LastTriggeredAt) < time.Duration(a.CooldownMinutes)*time.Minute
}

// Notification delivery channels
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// Notification represents a record created exactly once per successful
// trigger. After hand-off to a delivery channel only IsRead may change.
type Notification struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AlertID        uint            `gorm:"index" json:"alert_id"`
	Alert          *Alert          `gorm:"foreignKey:AlertID" json:"alert,omitempty"`
	Symbol         string          `gorm:"type:varchar(20);not null" json:"symbol"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	TriggeredValue decimal.Decimal `gorm:"type:decimal(18,6)" json:"triggered_value"`
	TargetValue    decimal.Decimal `gorm:"type:decimal(18,6)" json:"target_value"`
	Channel        string          `gorm:"type:varchar(10)" json:"channel"`
	IsRead         bool            `gorm:"default:false" json:"is_read"`
	IsSent         bool            `gorm:"default:false" json:"is_sent"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Alert{},
		&Notification{},
	)
}
