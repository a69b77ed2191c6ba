package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"shipping-gateway/internal/core/logger"

	"github.com/elazarl/goproxy"
	"go.uber.org/zap"
)

// Forwarder runs a local unauthenticated proxy that tunnels everything through
// a credentialed upstream proxy. Chromium cannot take proxy credentials on the
// command line, so scraping adapters point the browser at the forwarder's
// local address instead.
type Forwarder struct {
	settings Settings
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
}

// NewForwarder creates a Forwarder for the given upstream proxy settings.
func NewForwarder(settings Settings) *Forwarder {
	return &Forwarder{
		settings: settings,
		logger:   logger.Get(),
	}
}

// Start binds the forwarder to a random loopback port and returns the local
// proxy URL (e.g. "http://127.0.0.1:18080"). Calling Start on a running
// forwarder returns the existing address.
func (f *Forwarder) Start(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return f.localURL(), nil
	}

	upstream := fmt.Sprintf("%s:%d", f.settings.Hostname, f.settings.Port)

	var auth string
	if f.settings.Username != "" && f.settings.Password != "" {
		creds := f.settings.Username + ":" + f.settings.Password
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}

	dial := func(network, addr string) (net.Conn, error) {
		return dialThroughUpstream(upstream, auth, addr, f.logger)
	}

	handler := goproxy.NewProxyHttpServer()
	handler.ConnectDial = dial
	handler.Tr = &http.Transport{Dial: dial}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to bind forwarder port: %w", err)
	}
	f.listener = listener
	f.server = &http.Server{Handler: handler}

	f.logger.Debug("Starting proxy forwarder",
		zap.String("local_addr", listener.Addr().String()),
		zap.String("upstream", upstream),
	)

	go func() {
		if err := f.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.logger.Error("Proxy forwarder server error", zap.Error(err))
		}
	}()

	f.running = true
	return f.localURL(), nil
}

// Stop shuts the forwarder down. Stopping a stopped forwarder is a no-op.
func (f *Forwarder) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.server.Shutdown(ctx); err != nil {
		f.listener.Close()
		return err
	}

	f.running = false
	return nil
}

func (f *Forwarder) localURL() string {
	return fmt.Sprintf("http://%s", f.listener.Addr().String())
}

// dialThroughUpstream opens a CONNECT tunnel to addr through the upstream
// proxy, attaching Proxy-Authorization when credentials are configured.
func dialThroughUpstream(upstream, auth, addr string, log *zap.Logger) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", upstream, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to upstream proxy %s: %w", upstream, err)
	}

	connectReq := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", addr, addr)
	if auth != "" {
		connectReq += "Proxy-Authorization: " + auth + "\r\n"
	}
	connectReq += "\r\n"

	if _, err := conn.Write([]byte(connectReq)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		log.Error("Upstream proxy rejected CONNECT",
			zap.Int("status", resp.StatusCode),
			zap.String("target", addr),
		)
		return nil, fmt.Errorf("upstream proxy CONNECT failed with status: %d", resp.StatusCode)
	}

	return conn, nil
}
