package alerts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"marketpulse-backend/config"
	"marketpulse-backend/models"
	"marketpulse-backend/services/realtime"
)

// ErrDeliveryFailed wraps channel-level delivery errors. Delivery is
// best-effort; the engine logs these and never rolls back trigger state.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notifier delivers a notification over one channel
type Notifier interface {
	Channel() string
	Send(n *models.Notification, alert *models.Alert) error
}

// EmailNotifier delivers notifications over SMTP
type EmailNotifier struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       string
}

// NewEmailNotifier creates an SMTP notifier from configuration
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		to:       cfg.AlertEmailTo,
	}
}

func (e *EmailNotifier) Channel() string {
	return models.ChannelEmail
}

// Send delivers the notification as a plain-text email
func (e *EmailNotifier) Send(n *models.Notification, alert *models.Alert) error {
	if e.host == "" || e.to == "" {
		return fmt.Errorf("%w: SMTP not configured", ErrDeliveryFailed)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n\r\nSymbol: %s\r\nObserved: %s\r\nTarget: %s\r\n",
		e.from, e.to, n.Title, n.Message,
		n.Symbol, n.TriggeredValue.String(), n.TargetValue.String())

	addr := e.host + ":" + e.port
	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}

	if err := smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(body)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// PushNotifier delivers notifications by POSTing JSON to a webhook
type PushNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewPushNotifier creates a webhook push notifier from configuration
func NewPushNotifier(cfg *config.Config) *PushNotifier {
	return &PushNotifier{
		webhookURL: cfg.PushWebhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PushNotifier) Channel() string {
	return models.ChannelPush
}

// Send POSTs the notification payload to the configured webhook
func (p *PushNotifier) Send(n *models.Notification, alert *models.Alert) error {
	if p.webhookURL == "" {
		return fmt.Errorf("%w: push webhook not configured", ErrDeliveryFailed)
	}

	payload := map[string]interface{}{
		"title":           n.Title,
		"message":         n.Message,
		"symbol":          n.Symbol,
		"condition":       alert.Condition.String(),
		"triggered_value": n.TriggeredValue.String(),
		"target_value":    n.TargetValue.String(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	resp, err := p.httpClient.Post(p.webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

// InAppNotifier pushes notifications to connected WebSocket clients
type InAppNotifier struct {
	hub *realtime.Hub
}

// NewInAppNotifier creates a notifier backed by the realtime hub
func NewInAppNotifier(hub *realtime.Hub) *InAppNotifier {
	return &InAppNotifier{hub: hub}
}

func (i *InAppNotifier) Channel() string {
	return models.ChannelInApp
}

// Send broadcasts the notification to subscribed clients. Broadcasting
// to zero clients still counts as delivered.
func (i *InAppNotifier) Send(n *models.Notification, alert *models.Alert) error {
	if i.hub == nil {
		return fmt.Errorf("%w: realtime hub not running", ErrDeliveryFailed)
	}
	i.hub.Broadcast("alert_triggered", n.Symbol, n)
	return nil
}
