package httputil

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

const (
	MaxFormSize = 1 << 20 // 1MB
)

func ReadJsonBody(r *http.Request, dst interface{}) error {
	if r.Body == http.NoBody {
		return nil
	}

	d := json.NewDecoder(r.Body)

	return d.Decode(dst)
}

// BaseURL rebuilds scheme://host of the request, honouring common proxy headers.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}

	return scheme + "://" + host
}

// ClientIP prefers X-Real-Ip as set by a fronting proxy. Clients can forge it.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	return PeerIP(r)
}

// PeerIP is the address of the connection itself.
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type throttledKey struct{}

// WithThrottled marks a request that went over its rate limit.
func WithThrottled(ctx context.Context) context.Context {
	return context.WithValue(ctx, throttledKey{}, true)
}

func IsThrottled(ctx context.Context) bool {
	throttled, _ := ctx.Value(throttledKey{}).(bool)
	return throttled
}

type requestMetaKey struct{}

// RequestMeta is the part of the inbound request that handlers may need besides the decoded body.
type RequestMeta struct {
	UserAgent string
	ClientIP  string
	BaseURL   string
}

func WithRequestMeta(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, &RequestMeta{
		UserAgent: r.UserAgent(),
		ClientIP:  ClientIP(r),
		BaseURL:   BaseURL(r),
	})
}

// GetRequestMeta never returns nil.
func GetRequestMeta(ctx context.Context) *RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(*RequestMeta); ok && meta != nil {
		return meta
	}
	return new(RequestMeta)
}
