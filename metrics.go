package linkauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshMismatch
	MetricRefreshRateLimited
	MetricSessionCreated
	MetricLogout
	MetricLogoutAll
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricAccountDeleted
	MetricAccountDisabled
	MetricOAuthBegin
	MetricOAuthLogin
	MetricOAuthSignup
	MetricOAuthConflict
	MetricOAuthStateInvalid
	MetricOAuthSessionMismatch
	MetricOAuthProviderFailure
	MetricLinkCreated
	MetricLinkRejected
	MetricUnlinkSuccess
	MetricUnlinkRejected

	// Latency histograms. Only Observe records into these.
	MetricAuthenticateLatency
	MetricOAuthCallbackLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the upper bounds of the first seven buckets; the last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

type metricHistogram struct {
	buckets [histBucketCount]atomic.Uint64
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics
// ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms holds
// non-cumulative bucket counts and is empty unless latency is enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || isHistogram(id) {
		return
	}
	m.counters[id].value.Add(1)
}

// Observe records d into a latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isHistogram(id) {
		return
	}
	m.histograms[id].buckets[bucketIndex(d)].Add(1)
}

// Value returns one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].value.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = m.counters[id].value.Load()
	}
	if m.enableLatency {
		for _, id := range HistogramIDs() {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = m.histograms[id].buckets[i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

// HistogramIDs lists the latency metrics.
func HistogramIDs() []MetricID {
	return []MetricID{MetricAuthenticateLatency, MetricOAuthCallbackLatency}
}

func isHistogram(id MetricID) bool {
	return id == MetricAuthenticateLatency || id == MetricOAuthCallbackLatency
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, e.clock.Since(start))
}
