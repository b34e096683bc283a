package uasub

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryMetrics is an in-memory Metrics implementation. It backs tests
// and lets diagnostics snapshot the engine counters without an external
// metrics backend.
type MemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*memoryCounter
	gauges     map[string]*memoryGauge
	histograms map[string]*memoryHistogram
}

// NewMemoryMetrics creates a new in-memory metrics instance.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		counters:   make(map[string]*memoryCounter),
		gauges:     make(map[string]*memoryGauge),
		histograms: make(map[string]*memoryHistogram),
	}
}

// seriesKey builds a stable identity for one metric series. Labels are
// sorted so the same name and label set always lands on the same series
// regardless of map iteration order.
func seriesKey(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

// Counter returns the counter series for the given name and labels.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	key := seriesKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[key]; ok {
		return c
	}

	c := &memoryCounter{}
	m.counters[key] = c

	return c
}

// Gauge returns the gauge series for the given name and labels.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	key := seriesKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[key]; ok {
		return g
	}

	g := &memoryGauge{}
	m.gauges[key] = g

	return g
}

// Histogram returns the histogram series for the given name and labels.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	key := seriesKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[key]; ok {
		return h
	}

	h := &memoryHistogram{}
	m.histograms[key] = h

	return h
}

// GetCounter returns an existing counter series, or nil.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.counters[seriesKey(name, labels)]
	if !ok {
		return nil
	}
	return c
}

// GetGauge returns an existing gauge series, or nil.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.gauges[seriesKey(name, labels)]
	if !ok {
		return nil
	}
	return g
}

// GetHistogram returns an existing histogram series, or nil.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.histograms[seriesKey(name, labels)]
	if !ok {
		return nil
	}
	return h
}

// HistogramSnapshot is the observed distribution of one histogram series.
type HistogramSnapshot struct {
	Count uint64
	Sum   float64
	Min   float64
	Max   float64
}

// MetricsSnapshot is a point-in-time copy of every recorded series,
// keyed by series key (name plus sorted labels).
type MetricsSnapshot struct {
	Counters   map[string]float64
	Gauges     map[string]float64
	Histograms map[string]HistogramSnapshot
}

// Snapshot copies the current value of every series. Diagnostics use
// this to dump the engine state (publish responses, keep-alives,
// retransmission depth) in one consistent view.
func (m *MemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		Counters:   make(map[string]float64, len(m.counters)),
		Gauges:     make(map[string]float64, len(m.gauges)),
		Histograms: make(map[string]HistogramSnapshot, len(m.histograms)),
	}
	for key, c := range m.counters {
		snap.Counters[key] = c.Value()
	}
	for key, g := range m.gauges {
		snap.Gauges[key] = g.Value()
	}
	for key, h := range m.histograms {
		snap.Histograms[key] = h.snapshot()
	}
	return snap
}

type memoryCounter struct {
	mu    sync.Mutex
	value float64
}

func (c *memoryCounter) Inc() {
	c.Add(1)
}

// Add ignores negative deltas; counters are monotonic.
func (c *memoryCounter) Add(delta float64) {
	if delta < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.value += delta
}

func (c *memoryCounter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.value
}

type memoryGauge struct {
	mu    sync.Mutex
	value float64
}

func (g *memoryGauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value = value
}

func (g *memoryGauge) Inc() {
	g.Add(1)
}

func (g *memoryGauge) Dec() {
	g.Add(-1)
}

func (g *memoryGauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.value += delta
}

func (g *memoryGauge) Sub(delta float64) {
	g.Add(-delta)
}

func (g *memoryGauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.value
}

type memoryHistogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	min   float64
	max   float64
}

func (h *memoryHistogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 || value < h.min {
		h.min = value
	}
	if h.count == 0 || value > h.max {
		h.max = value
	}
	h.count++
	h.sum += value
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *memoryHistogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.count
}

func (h *memoryHistogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sum
}

// Min returns the smallest observed value, or 0 before any observation.
func (h *memoryHistogram) Min() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.min
}

// Max returns the largest observed value, or 0 before any observation.
func (h *memoryHistogram) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.max
}

func (h *memoryHistogram) snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	return HistogramSnapshot{
		Count: h.count,
		Sum:   h.sum,
		Min:   h.min,
		Max:   h.max,
	}
}
