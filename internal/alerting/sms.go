package alerting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"wallet-activity-alerts/internal/classify"
	"wallet-activity-alerts/internal/route"
)

// SMSNotifier 通过 Twilio 风格的网关发送短信。
type SMSNotifier struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *retryablehttp.Client
	logger     zerolog.Logger
}

// NewSMSNotifier 构造短信告警器。
func NewSMSNotifier(accountSID, authToken, fromNumber, baseURL string, timeout time.Duration, logger zerolog.Logger) *SMSNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &SMSNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		logger:     logger.With().Str("component", "alert_sms").Logger(),
	}
}

// SendSMS 向单个号码推送一条短信。
func (n *SMSNotifier) SendSMS(ctx context.Context, phone string, candidate classify.Candidate) error {
	if n.accountSID == "" || n.authToken == "" || n.fromNumber == "" {
		return fmt.Errorf("sms gateway credentials not configured")
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", n.fromNumber)
	form.Set("Body", renderSMSBody(candidate))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", n.baseURL, url.PathEscape(n.accountSID))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.accountSID, n.authToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms 网关响应码异常: %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("kind", string(candidate.Kind)).
		Str("event_id", candidate.EventID).
		Msg("告警已发送 (SMS)")
	return nil
}

func renderSMSBody(candidate classify.Candidate) string {
	switch candidate.Kind {
	case classify.KindTransfer:
		return fmt.Sprintf("Wallet %s moved ~$%s (tx %s)",
			candidate.SourceID, candidate.USDValue.StringFixed(0), shorten(candidate.TxSignature))
	case classify.KindTokenMention:
		return fmt.Sprintf("%s posted about %s", candidate.SourceID, strings.Join(candidate.Addresses, ", "))
	default:
		return fmt.Sprintf("%s posted: %s", candidate.SourceID, shorten(candidate.Text))
	}
}

func shorten(v string) string {
	const max = 80
	if len(v) <= max {
		return v
	}
	return v[:max] + "…"
}

var _ route.SMSSink = (*SMSNotifier)(nil)
