package retry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates counters across every Execute call made through the
// Executor that owns it. Each Executor has its own Metrics, shared by all
// policies run through that Executor.
type Metrics struct {
	calls         int64
	rateLimitHits int64
	quotaHits     int64
	networkErrors int64
	authErrors    int64

	mu           sync.Mutex
	totalLatency time.Duration
	lastCall     time.Time
}

// Snapshot is a point-in-time, read-only copy of Metrics.
type Snapshot struct {
	Calls            int64
	RateLimitHits    int64
	QuotaHits        int64
	NetworkErrors    int64
	AuthErrors       int64
	AverageLatency   time.Duration
	LastCall         time.Time
}

func (m *Metrics) recordCall(d time.Duration) {
	atomic.AddInt64(&m.calls, 1)
	m.mu.Lock()
	m.totalLatency += d
	m.lastCall = now()
	m.mu.Unlock()
}

func (m *Metrics) recordClass(c class) {
	switch c {
	case classRateLimited:
		atomic.AddInt64(&m.rateLimitHits, 1)
	case classQuota:
		atomic.AddInt64(&m.quotaHits, 1)
	case classNetwork:
		atomic.AddInt64(&m.networkErrors, 1)
	case classAuthFailed:
		atomic.AddInt64(&m.authErrors, 1)
	}
}

// Snapshot returns the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	calls := atomic.LoadInt64(&m.calls)

	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if calls > 0 {
		avg = m.totalLatency / time.Duration(calls)
	}

	return Snapshot{
		Calls:          calls,
		RateLimitHits:  atomic.LoadInt64(&m.rateLimitHits),
		QuotaHits:      atomic.LoadInt64(&m.quotaHits),
		NetworkErrors:  atomic.LoadInt64(&m.networkErrors),
		AuthErrors:     atomic.LoadInt64(&m.authErrors),
		AverageLatency: avg,
		LastCall:       m.lastCall,
	}
}

// now is a var so tests can't need wall-clock determinism beyond what
// time.Now provides; kept as a seam in case a future caller needs to stub it.
var now = time.Now
