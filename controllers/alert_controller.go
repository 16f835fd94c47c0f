package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marketpulse-backend/models"
	"marketpulse-backend/scheduler"
	"marketpulse-backend/services/alerts"
	"marketpulse-backend/services/archive"
)

// AlertController handles alert CRUD, notifications, and engine control
type AlertController struct {
	db        *gorm.DB
	repo      alerts.Repository
	engine    *alerts.Engine
	scheduler *scheduler.Scheduler
	archive   *archive.MongoArchive
}

// NewAlertController creates a new alert controller
func NewAlertController(db *gorm.DB, repo alerts.Repository, engine *alerts.Engine, sched *scheduler.Scheduler, arch *archive.MongoArchive) *AlertController {
	return &AlertController{
		db:        db,
		repo:      repo,
		engine:    engine,
		scheduler: sched,
		archive:   arch,
	}
}

// createAlertRequest is the payload for creating an alert
type createAlertRequest struct {
	Symbol          string          `json:"symbol" binding:"required"`
	Condition       string          `json:"condition" binding:"required"`
	TargetValue     decimal.Decimal `json:"target_value"`
	CooldownMinutes *int            `json:"cooldown_minutes"`
	Repeat          bool            `json:"repeat"`
	NotifyEmail     *bool           `json:"notify_email"`
	NotifyPush      bool            `json:"notify_push"`
}

// updateAlertRequest is the payload for updating an alert
type updateAlertRequest struct {
	TargetValue     *decimal.Decimal `json:"target_value"`
	IsActive        *bool            `json:"is_active"`
	CooldownMinutes *int             `json:"cooldown_minutes"`
	Repeat          *bool            `json:"repeat"`
	NotifyEmail     *bool            `json:"notify_email"`
	NotifyPush      *bool            `json:"notify_push"`
}

// GetAlerts returns alerts with optional filtering
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := ac.db.Model(&models.Alert{})
	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	query.Count(&total)

	var alertRows []models.Alert
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&alertRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": alertRows,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetAlert returns a single alert by ID
// GET /api/v1/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	alert, err := ac.repo.Get(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// CreateAlert creates a new alert rule
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidAlertCondition(req.Condition) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "Unsupported condition kind",
			"valid_conditions": models.ValidAlertConditions(),
		})
		return
	}

	alert := models.Alert{
		Symbol:      req.Symbol,
		AssetClass:  models.InferAssetClass(req.Symbol),
		Condition:   models.AlertCondition(req.Condition),
		TargetValue: req.TargetValue,
		IsActive:    true,
		Repeat:      req.Repeat,
		NotifyPush:  req.NotifyPush,
		NotifyEmail: true,
	}
	if req.CooldownMinutes != nil {
		alert.CooldownMinutes = *req.CooldownMinutes
	} else {
		alert.CooldownMinutes = 60
	}
	if req.NotifyEmail != nil {
		alert.NotifyEmail = *req.NotifyEmail
	}

	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// UpdateAlert modifies an existing alert
// PUT /api/v1/alerts/:id
func (ac *AlertController) UpdateAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	alert, err := ac.repo.Get(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.TargetValue != nil {
		updates["target_value"] = *req.TargetValue
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.CooldownMinutes != nil {
		updates["cooldown_minutes"] = *req.CooldownMinutes
	}
	if req.Repeat != nil {
		updates["repeat"] = *req.Repeat
	}
	if req.NotifyEmail != nil {
		updates["notify_email"] = *req.NotifyEmail
	}
	if req.NotifyPush != nil {
		updates["notify_push"] = *req.NotifyPush
	}

	if len(updates) > 0 {
		if err := ac.db.Model(alert).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
			return
		}
	}

	updated, _ := ac.repo.Get(uint(id))
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// DeleteAlert removes an alert
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	result := ac.db.Delete(&models.Alert{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

// ResetAlert re-arms a triggered one-shot alert
// POST /api/v1/alerts/:id/reset
func (ac *AlertController) ResetAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if err := ac.repo.Reset(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert reset"})
}

// TestAlert runs a one-off evaluation without mutating state
// POST /api/v1/alerts/:id/test
func (ac *AlertController) TestAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	eval, quote, err := ac.engine.TestAlert(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"triggered": eval.Triggered,
		"observed":  eval.Observed,
		"message":   eval.Message,
		"quote":     quote,
	})
}

// GetNotifications returns notifications, newest first
// GET /api/v1/notifications
func (ac *AlertController) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := ac.db.Model(&models.Notification{})
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

// MarkNotificationRead flags a notification as read
// POST /api/v1/notifications/:id/read
func (ac *AlertController) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	result := ac.db.Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked read"})
}

// GetArchivedNotifications returns recent entries from the long-term archive
// GET /api/v1/notifications/archive
func (ac *AlertController) GetArchivedNotifications(c *gin.Context) {
	if !ac.archive.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notification archive not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	docs, err := ac.archive.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch archived notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": docs})
}

// StartScheduler starts the recurring check cycle
// POST /api/v1/engine/start
func (ac *AlertController) StartScheduler(c *gin.Context) {
	ac.scheduler.Start()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler started"})
}

// StopScheduler stops the recurring check cycle
// POST /api/v1/engine/stop
func (ac *AlertController) StopScheduler(c *gin.Context) {
	ac.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped"})
}

// GetEngineStatus returns scheduler and engine state
// GET /api/v1/engine/status
func (ac *AlertController) GetEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scheduler_running": ac.scheduler.IsRunning(),
		"engine":            ac.engine.Status(),
		"archive":           ac.archive.Status(),
	})
}

// ForceCheck runs an immediate check cycle
// POST /api/v1/engine/check
func (ac *AlertController) ForceCheck(c *gin.Context) {
	if err := ac.scheduler.ForceCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Check cycle completed"})
}
