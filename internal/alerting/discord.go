package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/route"
)

// DiscordNotifier 通过 Discord webhook 向单个频道推送告警。
type DiscordNotifier struct {
	name       string
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewDiscordNotifier 构造 Discord 频道告警器。
func NewDiscordNotifier(name, webhookURL string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DiscordNotifier{
		name:       name,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_discord").Str("channel", name).Logger(),
	}
}

// Name identifies the channel in router logs.
func (n *DiscordNotifier) Name() string {
	return n.name
}

// Send 调用 webhook 推送文本。
func (n *DiscordNotifier) Send(ctx context.Context, candidate classify.Candidate, escalated bool) error {
	if n.webhookURL == "" {
		return fmt.Errorf("discord webhook url not configured for channel %s", n.name)
	}

	payload := map[string]string{
		"content": renderChannelMessage(candidate, escalated),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord 响应码异常: %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("kind", string(candidate.Kind)).
		Str("event_id", candidate.EventID).
		Bool("escalated", escalated).
		Msg("告警已发送 (Discord)")
	return nil
}

func renderChannelMessage(candidate classify.Candidate, escalated bool) string {
	builder := strings.Builder{}
	if escalated {
		builder.WriteString("🚨 ")
	}

	switch candidate.Kind {
	case classify.KindTransfer:
		builder.WriteString(fmt.Sprintf("[Wallet Activity] %s", candidate.SourceID))
		if !candidate.USDValue.IsZero() {
			builder.WriteString(fmt.Sprintf(" ~$%s", candidate.USDValue.StringFixed(2)))
		}
		if candidate.TxSignature != "" {
			builder.WriteString(fmt.Sprintf("\nTx: %s", candidate.TxSignature))
		}
		if candidate.Enrichment != nil {
			e := candidate.Enrichment
			builder.WriteString(fmt.Sprintf("\nMC $%s | LP $%s | holders %d | buys/sells %d/%d",
				e.MarketCapUSD.StringFixed(0), e.LiquidityUSD.StringFixed(0), e.Holders, e.Buys24h, e.Sells24h))
		}
	default:
		builder.WriteString(fmt.Sprintf("[Post] %s", candidate.SourceID))
		if candidate.Priority {
			builder.WriteString(" (VIP)")
		}
		if candidate.Text != "" {
			builder.WriteString("\n" + candidate.Text)
		}
		if len(candidate.Addresses) > 0 {
			builder.WriteString("\nTokens: " + strings.Join(candidate.Addresses, ", "))
		}
	}

	return builder.String()
}

var _ route.ChannelSink = (*DiscordNotifier)(nil)
