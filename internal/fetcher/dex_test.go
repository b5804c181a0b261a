package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tokenPayload() map[string]any {
	return map[string]any{
		"pairs": []map[string]any{
			{
				"baseToken":   map[string]string{"address": "mint-1", "name": "Meme Coin", "symbol": "MEME"},
				"marketCap":   "1250000",
				"liquidity":   map[string]string{"usd": "84000"},
				"priceChange": map[string]float64{"m5": 2.5, "h24": -10},
				"txns": map[string]any{
					"h24": map[string]int{"buys": 300, "sells": 150},
				},
				"holders":          1200,
				"uniqueWallets24h": 450,
			},
		},
	}
}

func TestDexResolveTokenKnown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/latest/dex/tokens/") {
			t.Fatalf("路径不正确: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(tokenPayload())
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	info, err := d.ResolveToken(context.Background(), "mint-1")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if info == nil || info.Symbol != "MEME" {
		t.Fatalf("token 解析不正确: %#v", info)
	}
}

func TestDexResolveTokenUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"pairs": []any{}})
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	info, err := d.ResolveToken(context.Background(), "not-a-token")
	if err != nil {
		t.Fatalf("未知地址不应报错: %v", err)
	}
	if info != nil {
		t.Fatalf("未知地址应返回 nil: %#v", info)
	}
}

func TestDexResolveTokenNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	info, err := d.ResolveToken(context.Background(), "missing")
	if err != nil || info != nil {
		t.Fatalf("404 应视为未知地址: info=%#v err=%v", info, err)
	}
}

func TestDexNativePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"priceUsd": "178.25"})
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	price, err := d.NativePriceUSD(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("178.25")) {
		t.Fatalf("期望价格 178.25, 实际 %s", price)
	}
}

func TestDexNativePriceZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"priceUsd": "0"})
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := d.NativePriceUSD(context.Background()); err == nil {
		t.Fatal("零价格应报错")
	}
}

func TestDexTokenStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenPayload())
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	stats, err := d.TokenStats(context.Background(), "mint-1")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if stats.Holders != 1200 || stats.Buys24h != 300 || stats.Sells24h != 150 {
		t.Fatalf("市场指标解析不正确: %#v", stats)
	}
	if stats.BuySellRatio != 2 {
		t.Fatalf("买卖比应为 2, 实际 %v", stats.BuySellRatio)
	}
	if !stats.MarketCapUSD.Equal(decimal.NewFromInt(1250000)) {
		t.Fatalf("市值解析不正确: %s", stats.MarketCapUSD)
	}
}

func TestDexTokenStatsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream exploded"})
	}))
	defer srv.Close()

	d := NewDex(DexOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := d.TokenStats(context.Background(), "mint-1"); err == nil {
		t.Fatal("HTTP 500 应返回错误")
	}
}
