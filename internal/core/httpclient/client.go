package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/core/proxy"

	"go.uber.org/zap"
)

// loggingTransport logs every outbound request with its duration and status.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger.Get().Debug("HTTP request started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logger.Get().Error("HTTP request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Get().Debug("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

// NewClient returns an http.Client that logs each request.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &loggingTransport{next: http.DefaultTransport},
		Timeout:   timeout,
	}
}

// NewProxiedClient returns a logging client that routes through the
// configured upstream proxy. Falls back to a direct client when the proxy
// is disabled or its URL is malformed.
func NewProxiedClient(timeout time.Duration, settings proxy.Settings) *http.Client {
	if !settings.HasProxy() {
		return NewClient(timeout)
	}

	proxyURL, err := url.Parse(settings.FullURL())
	if err != nil {
		logger.Get().Warn("Invalid proxy URL, using direct client", zap.Error(err))
		return NewClient(timeout)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxyURL)

	return &http.Client{
		Transport: &loggingTransport{next: transport},
		Timeout:   timeout,
	}
}
