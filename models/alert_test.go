package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNeedsIndicators(t *testing.T) {
	assert.False(t, ConditionPriceAbove.NeedsIndicators())
	assert.False(t, ConditionPriceBelow.NeedsIndicators())
	assert.False(t, ConditionPriceChangePercent.NeedsIndicators())

	assert.True(t, ConditionRSIOverbought.NeedsIndicators())
	assert.True(t, ConditionMACDCrossover.NeedsIndicators())
	assert.True(t, ConditionEMACross.NeedsIndicators())
	assert.True(t, ConditionBollingerLower.NeedsIndicators())
	assert.True(t, ConditionVolumeSpike.NeedsIndicators())
}

func TestIsValidAlertCondition(t *testing.T) {
	for _, c := range ValidAlertConditions() {
		assert.True(t, IsValidAlertCondition(string(c)))
	}
	assert.False(t, IsValidAlertCondition("moon_phase"))
	assert.False(t, IsValidAlertCondition(""))
}

func TestCooldownActive(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	fresh := &Alert{CooldownMinutes: 60}
	assert.False(t, fresh.CooldownActive(now), "never triggered means no cooldown")

	triggered := now.Add(-30 * time.Minute)
	inside := &Alert{CooldownMinutes: 60, LastTriggeredAt: &triggered}
	assert.True(t, inside.CooldownActive(now))

	old := now.Add(-61 * time.Minute)
	elapsed := &Alert{CooldownMinutes: 60, LastTriggeredAt: &old}
	assert.False(t, elapsed.CooldownActive(now))

	noCooldown := &Alert{CooldownMinutes: 0, LastTriggeredAt: &triggered}
	assert.False(t, noCooldown.CooldownActive(now))
}
