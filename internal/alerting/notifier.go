package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lending-risk-engine/internal/risk"
)

// Notification carries the liquidation-candidate report of one scan cycle.
type Notification struct {
	Cycle        time.Time
	UpdatedCount int
	Threshold    float64
	Candidates   []risk.LiquidationCandidate
	Channels     []string
}

// Notifier delivers liquidation warnings.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the candidate report via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("cycle", note.Cycle).
		Int("candidates", len(note.Candidates)).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("liquidation alert sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Liquidation Watch]\n")
	builder.WriteString(fmt.Sprintf("Cycle: %s UTC\n", note.Cycle.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Rates updated: %d\n", note.UpdatedCount))
	builder.WriteString(fmt.Sprintf("Positions below %.2f: %d\n", note.Threshold, len(note.Candidates)))
	for _, candidate := range note.Candidates {
		builder.WriteString(fmt.Sprintf("- %s %s position %d: health %s\n",
			candidate.UserAddress, candidate.Symbol, candidate.PositionID, formatHealth(candidate.HealthFactor)))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

func formatHealth(h float64) string {
	if math.IsInf(h, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", h)
}

var _ Notifier = (*TelegramNotifier)(nil)
