package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	requestMillis map[string]int64

	leaseCalls    int64
	ticketsLeased int64
	leaseRetries  int64
	sellOutcomes  map[string]int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	RequestMillis map[string]int64 `json:"request_millis"`
	LeaseCalls    int64            `json:"lease_calls"`
	TicketsLeased int64            `json:"tickets_leased"`
	LeaseRetries  int64            `json:"lease_retries"`
	SellOutcomes  map[string]int64 `json:"sell_outcomes"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		requestMillis: make(map[string]int64),
		sellOutcomes:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestMillis[key] += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordLease counts one completed lease call and the tickets it newly granted.
func (m *Metrics) RecordLease(granted int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaseCalls++
	m.ticketsLeased += int64(granted)
}

// RecordRetry counts a transaction retried after a transient store failure.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaseRetries++
}

// RecordSell counts sell attempts by outcome ("sold", "not_owner", ...).
func (m *Metrics) RecordSell(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellOutcomes[outcome]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		RequestMillis: copyCounts(m.requestMillis),
		LeaseCalls:    m.leaseCalls,
		TicketsLeased: m.ticketsLeased,
		LeaseRetries:  m.leaseRetries,
		SellOutcomes:  copyCounts(m.sellOutcomes),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
