package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-activity-alerts/internal/classify"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDiscordNotifierSuccess(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier("wallet", srv.URL, time.Second, testLogger())
	candidate := classify.Candidate{
		Kind:        classify.KindTransfer,
		SourceID:    "wallet-1",
		EventID:     "sig-1",
		TxSignature: "sig-1",
		USDValue:    decimal.NewFromInt(1500),
	}

	if err := notifier.Send(context.Background(), candidate, true); err != nil {
		t.Fatalf("Discord Send 应成功: %v", err)
	}
	if received["content"] == "" {
		t.Fatal("content 应非空")
	}
	if !strings.Contains(received["content"], "🚨") {
		t.Fatalf("升级告警应带标记: %q", received["content"])
	}
	if !strings.Contains(received["content"], "wallet-1") {
		t.Fatalf("content 应包含钱包地址: %q", received["content"])
	}
}

func TestDiscordNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier("wallet", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), classify.Candidate{Kind: classify.KindPost}, false); err == nil {
		t.Fatal("HTTP 400 应报错")
	}
}

func TestDiscordNotifierMissingURL(t *testing.T) {
	notifier := NewDiscordNotifier("wallet", "", time.Second, testLogger())
	if err := notifier.Send(context.Background(), classify.Candidate{}, false); err == nil {
		t.Fatal("缺少 webhook url 应报错")
	}
}

func TestSMSNotifierSuccess(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "Messages.json") {
			t.Fatalf("路径应包含 Messages.json, 实际 %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("解析表单失败: %v", err)
		}
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}))
	defer srv.Close()

	notifier := NewSMSNotifier("sid", "token", "+15550000", srv.URL, time.Second, testLogger())
	candidate := classify.Candidate{
		Kind:     classify.KindTransfer,
		SourceID: "wallet-1",
		USDValue: decimal.NewFromInt(2000),
	}

	if err := notifier.SendSMS(context.Background(), "+15551234", candidate); err != nil {
		t.Fatalf("SMS 发送应成功: %v", err)
	}
	if got := form.Get("To"); got != "+15551234" {
		t.Fatalf("To 不正确: %q", got)
	}
	if got := form.Get("Body"); !strings.Contains(got, "$2000") {
		t.Fatalf("Body 应包含金额: %q", got)
	}
}

func TestSMSNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notifier := NewSMSNotifier("sid", "token", "+15550000", srv.URL, time.Second, testLogger())
	if err := notifier.SendSMS(context.Background(), "+15551234", classify.Candidate{}); err == nil {
		t.Fatal("HTTP 401 应报错")
	}
}

func TestSMSNotifierMissingCredentials(t *testing.T) {
	notifier := NewSMSNotifier("", "", "", "", time.Second, testLogger())
	if err := notifier.SendSMS(context.Background(), "+15551234", classify.Candidate{}); err == nil {
		t.Fatal("缺少凭据应报错")
	}
}
