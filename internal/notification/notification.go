// Package notification formats and delivers trade signals and outcome
// reports to messaging channels.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/signal"
)

// NotificationType classifies a message for channel-side formatting
type NotificationType string

const (
	NotifySignal  NotificationType = "signal"
	NotifyOutcome NotificationType = "outcome"
	NotifyError   NotificationType = "error"
)

// Notification is a channel-agnostic message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	Win       bool
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Name() string
	IsEnabled() bool
	Send(notification *Notification) error
}

// Manager fans a notification out to all registered providers
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "notification").Logger(),
	}
}

// AddNotifier registers a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
	m.logger.Info().Str("provider", n.Name()).Bool("enabled", n.IsEnabled()).Msg("Notifier registered")
}

// Send delivers the notification to every enabled provider. A provider
// failure is logged and does not block the others.
func (m *Manager) Send(notification *Notification) error {
	var failed []string
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(notification); err != nil {
			m.logger.Error().Err(err).Str("provider", n.Name()).Msg("Failed to send notification")
			failed = append(failed, n.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notification failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

// SendSignal formats and delivers a generated trade signal
func (m *Manager) SendSignal(sig *signal.TradeSignal) error {
	emoji := "🟢"
	if sig.Direction == entry.Short {
		emoji = "🔴"
	}

	message := fmt.Sprintf(
		"%s %s %s\n\n"+
			"Entry: %.4f (%s)\n"+
			"Stop Loss: %.4f\n"+
			"TP1: %.4f | TP2: %.4f | TP3: %.4f\n"+
			"Position: $%.2f @ %.1fx\n"+
			"Confidence: %.0f%%\n"+
			"Setup: %s",
		emoji, sig.Symbol, sig.Direction,
		sig.EntryPrice, sig.EntryType,
		sig.StopLoss,
		sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3,
		sig.PositionSizeUSD, sig.Leverage,
		sig.Confidence*100,
		sig.Reason,
	)

	return m.Send(&Notification{
		Type:      NotifySignal,
		Title:     fmt.Sprintf("New %s Signal: %s", sig.Direction, sig.Symbol),
		Message:   message,
		Symbol:    sig.Symbol,
		Price:     sig.EntryPrice,
		Timestamp: time.Now().UTC(),
	})
}

// SendOutcome reports an evaluated signal outcome
func (m *Manager) SendOutcome(symbol, outcome string, hitPrice float64, win bool) error {
	emoji := "✅"
	if !win {
		emoji = "❌"
	}

	return m.Send(&Notification{
		Type:      NotifyOutcome,
		Title:     fmt.Sprintf("%s Signal Outcome: %s", emoji, symbol),
		Message:   fmt.Sprintf("%s resolved as %s at %.4f", symbol, outcome, hitPrice),
		Symbol:    symbol,
		Price:     hitPrice,
		Win:       win,
		Timestamp: time.Now().UTC(),
	})
}

// SendError reports an engine-level failure
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via the Telegram bot API
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	if notification.Type == NotifyError {
		color = 0xFF0000 // Red
	} else if notification.Type == NotifyOutcome && !notification.Win {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
