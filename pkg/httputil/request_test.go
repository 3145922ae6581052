package httputil_test

import (
	"context"
	"net/http/httptest"
	"phishsim/pkg/httputil"
	"testing"
)

func TestBaseURL(t *testing.T) {
	r := httptest.NewRequest("GET", "http://sim.local:8080/api/v1/send_campaign", nil)
	if got := httputil.BaseURL(r); got != "http://sim.local:8080" {
		t.Errorf("BaseURL() = %q", got)
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "phish.example.com, proxy.internal")
	if got := httputil.BaseURL(r); got != "https://phish.example.com" {
		t.Errorf("BaseURL() behind proxy = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/Track/Open", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	if got := httputil.ClientIP(r); got != "10.0.0.7" {
		t.Errorf("ClientIP() = %q", got)
	}

	r.Header.Set("X-Real-Ip", "203.0.113.9")
	if got := httputil.ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP() with X-Real-Ip = %q", got)
	}
	if got := httputil.PeerIP(r); got != "10.0.0.7" {
		t.Errorf("PeerIP() with X-Real-Ip = %q", got)
	}
}

func TestThrottled(t *testing.T) {
	ctx := context.Background()
	if httputil.IsThrottled(ctx) {
		t.Error("IsThrottled() on empty context = true")
	}
	if !httputil.IsThrottled(httputil.WithThrottled(ctx)) {
		t.Error("IsThrottled() after WithThrottled = false")
	}
}

func TestRequestMeta(t *testing.T) {
	if meta := httputil.GetRequestMeta(context.Background()); meta == nil || meta.UserAgent != "" {
		t.Fatalf("GetRequestMeta() on empty context = %+v", meta)
	}

	r := httptest.NewRequest("GET", "http://sim.local/Track/Open?c=1&t=2", nil)
	r.Header.Set("User-Agent", "Outlook/16.0")
	r.RemoteAddr = "10.0.0.8:1234"

	meta := httputil.GetRequestMeta(httputil.WithRequestMeta(context.Background(), r))
	if meta.UserAgent != "Outlook/16.0" || meta.ClientIP != "10.0.0.8" || meta.BaseURL != "http://sim.local" {
		t.Errorf("GetRequestMeta() = %+v", meta)
	}
}
