package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks the live signal loop. It reports degraded when the feed is
// disconnected or no bar arrived within the stale window.
type HealthChecker struct {
	mu          sync.RWMutex
	lastBar     time.Time
	lastPrice   float64
	lastSignal  string
	isConnected bool
	staleAfter  time.Duration
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastBar     time.Time `json:"last_bar"`
	LastPrice   float64   `json:"last_price"`
	LastSignal  string    `json:"last_signal,omitempty"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

const maxHealthErrors = 10

func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &HealthChecker{
		staleAfter: staleAfter,
		errors:     make([]string, 0),
	}
}

// ObserveBar marks a successful poll.
func (h *HealthChecker) ObserveBar(t time.Time, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBar = t
	h.lastPrice = price
	h.isConnected = true
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ObserveSignal(summary string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSignal = summary
}

// ObserveError keeps the most recent errors and marks the feed disconnected.
func (h *HealthChecker) ObserveError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = false
	h.errors = append(h.errors, err.Error())
	if len(h.errors) > maxHealthErrors {
		h.errors = h.errors[len(h.errors)-maxHealthErrors:]
	}
}

// Status computes the current status and HTTP code.
func (h *HealthChecker) Status(now time.Time) (HealthStatus, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := "healthy", http.StatusOK
	if !h.isConnected || now.Sub(h.lastBar) > h.staleAfter {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status, code = "unhealthy", http.StatusInternalServerError
	}

	return HealthStatus{
		Status:      status,
		Timestamp:   now,
		LastBar:     h.lastBar,
		LastPrice:   h.lastPrice,
		LastSignal:  h.lastSignal,
		IsConnected: h.isConnected,
		Uptime:      now.Sub(startTime).String(),
		Errors:      append([]string(nil), h.errors...),
	}, code
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health, code := h.Status(time.Now())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
