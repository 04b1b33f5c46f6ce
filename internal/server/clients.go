package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/osse101/riddlegroup/internal/logger"
)

// clientWindow counts one client's activity inside the current window
type clientWindow struct {
	requests   int
	failedAuth int
}

// clientTracker keeps fixed-window counters per client address.
// A window starts at a client's first request and ends when its entry expires.
type clientTracker struct {
	mu      sync.Mutex
	limit   int
	windows *expirable.LRU[string, *clientWindow]
}

func newClientTracker(limit int, window time.Duration) *clientTracker {
	if limit <= 0 {
		limit = DefaultRequestsPerWindow
	}
	if window <= 0 {
		window = DefaultClientWindow
	}
	return &clientTracker{
		limit:   limit,
		windows: expirable.NewLRU[string, *clientWindow](MaxTrackedClients, nil, window),
	}
}

// window returns the live counters for client. Caller must hold mu.
func (t *clientTracker) window(client string) *clientWindow {
	w, ok := t.windows.Get(client)
	if !ok {
		w = &clientWindow{}
		t.windows.Add(client, w)
	}
	return w
}

// allow counts a request and reports whether client is still under its limit
func (t *clientTracker) allow(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(client)
	w.requests++
	if w.requests <= t.limit {
		return true
	}
	if (w.requests-t.limit)%ThrottleLogEvery == 1 {
		logger.Warn(LogMsgClientThrottled, "client", client, "requests_in_window", w.requests, "limit", t.limit)
	}
	return false
}

// failedAuth counts a rejected credential and returns the running total for the window
func (t *clientTracker) failedAuth(client string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window(client)
	w.failedAuth++
	if w.failedAuth >= FailedAuthAlertThreshold && (w.failedAuth-FailedAuthAlertThreshold)%ThrottleLogEvery == 0 {
		logger.Warn(LogMsgRepeatedAuthFailed, "client", client, "count", w.failedAuth)
	}
	return w.failedAuth
}

// counts is a snapshot for tests
func (t *clientTracker) counts(client string) clientWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows.Peek(client); ok {
		return *w
	}
	return clientWindow{}
}

// proxySet holds the addresses allowed to speak for a client through X-Forwarded-For
type proxySet map[netip.Addr]struct{}

func newProxySet(addrs []string) proxySet {
	set := make(proxySet, len(addrs))
	for _, a := range addrs {
		if ip, err := netip.ParseAddr(strings.TrimSpace(a)); err == nil {
			set[ip.Unmap()] = struct{}{}
		}
	}
	return set
}

func (p proxySet) trusts(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	_, ok := p[ip.Unmap()]
	return ok
}

// clientAddress resolves the address a request is attributed to. Forwarded hops
// are only consulted when the direct peer is a trusted proxy, and are walked from
// the right so each trusted proxy vouches for the hop before it.
func (p proxySet) clientAddress(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !p.trusts(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get(HeaderForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !p.trusts(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}
