package connectivity

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"toursync/internal/config"

	"github.com/rs/zerolog"
)

// HTTPMonitor reports network reachability. Online means both a
// non-loopback interface is up and a probe to the public internet
// succeeded; an interface-up-but-unreachable state (captive portal, DNS
// failure) reports offline. Results are cached for a short TTL so a
// drain loop re-checking before every item does not hammer the probe
// endpoint.
type HTTPMonitor struct {
	probeURL string
	timeout  time.Duration
	cacheTTL time.Duration
	client   *http.Client
	logger   *zerolog.Logger

	mu        sync.Mutex
	lastCheck time.Time
	lastState bool
}

func NewHTTPMonitor(cfg config.ConnectivityConfig, logger *zerolog.Logger) *HTTPMonitor {
	return &HTTPMonitor{
		probeURL: cfg.ProbeURL,
		timeout:  cfg.Timeout(),
		cacheTTL: cfg.CacheTTL(),
		client:   &http.Client{Timeout: cfg.Timeout()},
		logger:   logger,
	}
}

// IsOnline never blocks past the configured timeout; on timeout or any
// probe error it reports false.
func (m *HTTPMonitor) IsOnline(ctx context.Context) bool {
	m.mu.Lock()
	if m.cacheTTL > 0 && time.Since(m.lastCheck) < m.cacheTTL {
		state := m.lastState
		m.mu.Unlock()
		return state
	}
	m.mu.Unlock()

	state := m.interfaceUp() && m.probe(ctx)

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastState = state
	m.mu.Unlock()

	return state
}

// Invalidate drops the cached state so the next IsOnline probes afresh.
func (m *HTTPMonitor) Invalidate() {
	m.mu.Lock()
	m.lastCheck = time.Time{}
	m.mu.Unlock()
}

func (m *HTTPMonitor) interfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to list network interfaces")
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true
	}
	return false
}

func (m *HTTPMonitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to build connectivity probe request")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Connectivity probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
