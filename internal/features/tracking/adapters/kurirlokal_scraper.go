package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shipping-gateway/internal/core/httpclient"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/core/proxy"
	cdomain "shipping-gateway/internal/features/couriers/domain"
	"shipping-gateway/internal/features/tracking/domain"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// KurirLokalScraper reads tracking timelines for the regional courier whose
// only public surface is its tracking web page. A headless browser loads the
// page and the scraper hijacks the XHR call the page makes for its timeline
// JSON instead of parsing rendered HTML.
type KurirLokalScraper struct {
	trackingURL string
	proxy       proxy.Settings
	logger      *zap.Logger
}

// NewKurirLokalScraper creates a KurirLokalScraper. trackingURL must contain
// a %s placeholder for the tracking number.
func NewKurirLokalScraper(trackingURL string, proxySettings proxy.Settings) *KurirLokalScraper {
	return &KurirLokalScraper{
		trackingURL: trackingURL,
		proxy:       proxySettings,
		logger:      logger.Get(),
	}
}

// kurirlokalStatusTable maps the page's Indonesian status strings to the
// canonical vocabulary.
var kurirlokalStatusTable = map[string]domain.TrackingStatus{
	"pesanan diterima":      domain.StatusOrderReceived,
	"menunggu kurir":        domain.StatusOrderConfirmed,
	"paket dijemput":        domain.StatusPickedUp,
	"dalam perjalanan":      domain.StatusInTransit,
	"transit di gudang":     domain.StatusInTransit,
	"kurir menuju penerima": domain.StatusOutForDelivery,
	"gagal antar":           domain.StatusDeliveryAttempted,
	"paket terkirim":        domain.StatusDelivered,
	"terkendala":            domain.StatusDelayed,
	"dikembalikan":          domain.StatusReturnedToSender,
	"dibatalkan":            domain.StatusCancelled,
}

// kurirlokalResponse is the timeline JSON the tracking page fetches.
type kurirlokalResponse struct {
	Resi    string `json:"resi"`
	History []struct {
		Status    string `json:"status"`
		Deskripsi string `json:"deskripsi"`
		Kota      string `json:"kota"`
		Waktu     string `json:"waktu"`
	} `json:"history"`
}

// Track retrieves the courier's timeline snapshot using browser automation.
func (s *KurirLokalScraper) Track(ctx context.Context, trackingNumber string) (*cdomain.TrackingSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pageURL := fmt.Sprintf(s.trackingURL, trackingNumber)

	s.logger.Debug("Launching browser for kurirlokal tracking",
		zap.Bool("proxy_enabled", s.proxy.HasProxy()),
		zap.String("tracking_number", trackingNumber),
	)

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	if s.proxy.HasProxy() {
		proxyAddr := s.proxy.HostPort()
		if s.proxy.Username != "" && s.proxy.Password != "" {
			// Chromium cannot authenticate against a proxy itself, so route
			// through a local forwarder that holds the credentials.
			forwarder := proxy.NewForwarder(s.proxy)
			addr, err := forwarder.Start(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to start proxy forwarder: %w", err)
			}
			defer forwarder.Stop()
			proxyAddr = addr
		}
		l = l.Proxy(proxyAddr)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page := browser.MustPage(pageURL)

	router := page.HijackRequests()
	defer router.MustStop()

	done := make(chan []byte, 1)

	// Replay the hijacked XHR through the same proxy the browser uses so the
	// courier sees one egress address.
	replayClient := httpclient.NewProxiedClient(30*time.Second, s.proxy)

	router.MustAdd("*/api/v1/lacak*", func(hctx *rod.Hijack) {
		if err := hctx.LoadResponse(replayClient, true); err != nil {
			return
		}
		// Non-blocking send: only the first timeline body matters, and the
		// receiver may already have given up on a timeout.
		select {
		case done <- []byte(hctx.Response.Body()):
		default:
		}
	})

	go router.Run()

	select {
	case body := <-done:
		return parseKurirLokalTimeline(trackingNumber, body, s.logger)
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout waiting for kurirlokal timeline: %w", ctx.Err())
	}
}

// parseKurirLokalTimeline converts the hijacked timeline JSON into a snapshot.
// Separated from Track so mapping can be tested without a browser.
func parseKurirLokalTimeline(trackingNumber string, body []byte, log *zap.Logger) (*cdomain.TrackingSnapshot, error) {
	var resp kurirlokalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse kurirlokal timeline: %w", err)
	}

	// Layout observed on the page: "2026-01-28 10:50"
	const timeLayout = "2006-01-02 15:04"
	jakarta := time.FixedZone("WIB", 7*60*60)

	snapshot := &cdomain.TrackingSnapshot{
		Ref:    cdomain.ShipmentRef{TrackingNumber: trackingNumber},
		Events: make([]cdomain.CourierEvent, 0, len(resp.History)),
	}

	for _, item := range resp.History {
		status, ok := kurirlokalStatusTable[strings.ToLower(strings.TrimSpace(item.Status))]
		if !ok {
			status = domain.StatusInTransit
			log.Warn("Unknown kurirlokal status encountered",
				zap.String("status", item.Status),
				zap.String("tracking_number", trackingNumber),
			)
		}

		eventTime, err := time.ParseInLocation(timeLayout, item.Waktu, jakarta)
		if err != nil {
			log.Warn("Unparseable kurirlokal event time",
				zap.String("waktu", item.Waktu),
				zap.String("tracking_number", trackingNumber),
			)
		}

		raw, _ := json.Marshal(item)
		snapshot.Events = append(snapshot.Events, cdomain.CourierEvent{
			Status:               status,
			Unmapped:             !ok,
			ProviderStatus:       item.Status,
			EventTime:            eventTime,
			Description:          item.Deskripsi,
			LocalizedDescription: item.Deskripsi,
			City:                 item.Kota,
			Raw:                  raw,
		})
	}

	return snapshot, nil
}
