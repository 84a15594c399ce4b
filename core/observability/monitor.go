package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor collects per-route request metrics and connection counters. All
// methods are safe for concurrent use by pool workers.
type Monitor struct {
	routes sync.Map // route name -> *routeMetrics

	global struct {
		requests    atomic.Uint64
		errors      atomic.Uint64
		connections atomic.Uint64
		badRequests atomic.Uint64
		rejected    atomic.Uint64
		bytesIn     atomic.Uint64
		bytesOut    atomic.Uint64
	}
}

// latency bucket upper bounds in milliseconds; the last bucket is unbounded
var bucketBounds = [...]uint64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

type routeMetrics struct {
	count    atomic.Uint64
	errors   atomic.Uint64
	totalNs  atomic.Uint64
	minNs    atomic.Uint64
	maxNs    atomic.Uint64
	statuses sync.Map // int -> *atomic.Uint64
	buckets  [len(bucketBounds) + 1]atomic.Uint64
}

// RouteStats is a point-in-time view of one route
type RouteStats struct {
	Route      string            `json:"route"`
	Count      uint64            `json:"count"`
	Errors     uint64            `json:"errors"`
	AvgMs      float64           `json:"avg_ms"`
	MinMs      float64           `json:"min_ms"`
	MaxMs      float64           `json:"max_ms"`
	Statuses   map[string]uint64 `json:"statuses"`
	LatencyMs  map[string]uint64 `json:"latency_ms"`
	avgLatency time.Duration
}

// Snapshot is a point-in-time view of the whole monitor
type Snapshot struct {
	Requests    uint64       `json:"requests"`
	Errors      uint64       `json:"errors"`
	Connections uint64       `json:"connections"`
	BadRequests uint64       `json:"bad_requests"`
	Rejected    uint64       `json:"rejected"`
	BytesIn     uint64       `json:"bytes_in"`
	BytesOut    uint64       `json:"bytes_out"`
	Routes      []RouteStats `json:"routes"`
}

// Bottleneck flags a route with high latency or a high error rate
type Bottleneck struct {
	Type     string
	Location string
	Details  string
}

// NewMonitor creates a monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// RecordRequest records one dispatched request. Status codes of 500 and
// above count as errors.
func (m *Monitor) RecordRequest(route string, duration time.Duration, status int) {
	val, _ := m.routes.LoadOrStore(route, &routeMetrics{})
	rm := val.(*routeMetrics)

	ns := uint64(duration.Nanoseconds())
	rm.count.Add(1)
	rm.totalNs.Add(ns)
	updateMin(&rm.minNs, ns)
	updateMax(&rm.maxNs, ns)
	rm.buckets[bucketIndex(ns)].Add(1)

	counter, _ := rm.statuses.LoadOrStore(status, new(atomic.Uint64))
	counter.(*atomic.Uint64).Add(1)

	m.global.requests.Add(1)
	if status >= 500 {
		rm.errors.Add(1)
		m.global.errors.Add(1)
	}
}

// RecordConnection counts an accepted connection and its traffic
func (m *Monitor) RecordConnection(bytesIn, bytesOut int) {
	m.global.connections.Add(1)
	m.global.bytesIn.Add(uint64(bytesIn))
	m.global.bytesOut.Add(uint64(bytesOut))
}

// RecordBadRequest counts a request that failed to parse
func (m *Monitor) RecordBadRequest() {
	m.global.badRequests.Add(1)
}

// RecordRejected counts a connection refused because the pool was closed
func (m *Monitor) RecordRejected() {
	m.global.rejected.Add(1)
}

func updateMin(v *atomic.Uint64, d uint64) {
	for {
		cur := v.Load()
		if cur != 0 && d >= cur {
			return
		}
		if v.CompareAndSwap(cur, d) {
			return
		}
	}
}

func updateMax(v *atomic.Uint64, d uint64) {
	for {
		cur := v.Load()
		if d <= cur {
			return
		}
		if v.CompareAndSwap(cur, d) {
			return
		}
	}
}

func bucketIndex(ns uint64) int {
	ms := ns / uint64(time.Millisecond)
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return len(bucketBounds)
}

func bucketLabel(i int) string {
	if i == len(bucketBounds) {
		return fmt.Sprintf(">=%d", bucketBounds[len(bucketBounds)-1])
	}
	return fmt.Sprintf("<%d", bucketBounds[i])
}

// Snapshot returns current metrics with routes sorted by name
func (m *Monitor) Snapshot() Snapshot {
	s := Snapshot{
		Requests:    m.global.requests.Load(),
		Errors:      m.global.errors.Load(),
		Connections: m.global.connections.Load(),
		BadRequests: m.global.badRequests.Load(),
		Rejected:    m.global.rejected.Load(),
		BytesIn:     m.global.bytesIn.Load(),
		BytesOut:    m.global.bytesOut.Load(),
		Routes:      make([]RouteStats, 0),
	}

	m.routes.Range(func(key, value any) bool {
		s.Routes = append(s.Routes, value.(*routeMetrics).stats(key.(string)))
		return true
	})
	sort.Slice(s.Routes, func(i, j int) bool {
		return s.Routes[i].Route < s.Routes[j].Route
	})
	return s
}

func (rm *routeMetrics) stats(route string) RouteStats {
	rs := RouteStats{
		Route:     route,
		Count:     rm.count.Load(),
		Errors:    rm.errors.Load(),
		MinMs:     toMs(rm.minNs.Load()),
		MaxMs:     toMs(rm.maxNs.Load()),
		Statuses:  make(map[string]uint64),
		LatencyMs: make(map[string]uint64),
	}
	if rs.Count > 0 {
		rs.avgLatency = time.Duration(rm.totalNs.Load() / rs.Count)
		rs.AvgMs = toMs(uint64(rs.avgLatency))
	}

	rm.statuses.Range(func(key, value any) bool {
		rs.Statuses[fmt.Sprint(key)] = value.(*atomic.Uint64).Load()
		return true
	})
	for i := range rm.buckets {
		if n := rm.buckets[i].Load(); n > 0 {
			rs.LatencyMs[bucketLabel(i)] = n
		}
	}
	return rs
}

func toMs(ns uint64) float64 {
	return float64(ns) / float64(time.Millisecond)
}

// Bottlenecks reports routes whose average latency exceeds maxAvg or whose
// error ratio exceeds maxErrorRate.
func (m *Monitor) Bottlenecks(maxAvg time.Duration, maxErrorRate float64) []Bottleneck {
	var out []Bottleneck
	for _, rs := range m.Snapshot().Routes {
		if rs.Count == 0 {
			continue
		}
		if rs.avgLatency > maxAvg {
			out = append(out, Bottleneck{
				Type:     "latency",
				Location: rs.Route,
				Details:  fmt.Sprintf("high latency (%v avg)", rs.avgLatency),
			})
		}
		rate := float64(rs.Errors) / float64(rs.Count)
		if rs.Errors > 0 && rate > maxErrorRate {
			out = append(out, Bottleneck{
				Type:     "errors",
				Location: rs.Route,
				Details:  fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}
	}
	return out
}
