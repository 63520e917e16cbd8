package telemetry

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// PerformanceMonitor tracks system and application performance metrics
type PerformanceMonitor struct {
	mu          sync.RWMutex
	enabled     bool
	collector   *Collector
	startTime   time.Time
	lastMetrics runtime.MemStats
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor(collector *Collector, enabled bool) *PerformanceMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	pm := &PerformanceMonitor{
		enabled:   enabled,
		collector: collector,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	if enabled {
		go pm.collectSystemMetrics()
	}

	return pm
}

// collectSystemMetrics periodically collects system performance metrics
func (pm *PerformanceMonitor) collectSystemMetrics() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.recordSystemMetrics()
		}
	}
}

// recordSystemMetrics records current system metrics
func (pm *PerformanceMonitor) recordSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	labels := map[string]string{"component": "system"}

	// Memory metrics
	pm.collector.Gauge("deepcision_memory_heap_bytes", float64(m.HeapAlloc), labels)
	pm.collector.Gauge("deepcision_memory_heap_sys_bytes", float64(m.HeapSys), labels)
	pm.collector.Gauge("deepcision_memory_stack_bytes", float64(m.StackSys), labels)
	pm.collector.Gauge("deepcision_memory_gc_pause_ns", float64(m.PauseNs[(m.NumGC+255)%256]), labels)

	// GC metrics
	pm.collector.Counter("deepcision_gc_total", float64(m.NumGC-pm.lastMetrics.NumGC), labels)
	pm.collector.Gauge("deepcision_gc_cpu_fraction", m.GCCPUFraction*100, labels)

	// Goroutine metrics
	pm.collector.Gauge("deepcision_goroutines_total", float64(runtime.NumGoroutine()), labels)

	// CPU count
	pm.collector.Gauge("deepcision_cpu_cores", float64(runtime.NumCPU()), labels)

	// Uptime
	uptime := time.Since(pm.startTime)
	pm.collector.Gauge("deepcision_uptime_seconds", uptime.Seconds(), labels)

	pm.lastMetrics = m
}

// RecordQueryMetrics records metrics for a single provider query
func (pm *PerformanceMonitor) RecordQueryMetrics(provider, model string, duration time.Duration, cached, success bool) {
	if !pm.enabled {
		return
	}

	labels := map[string]string{
		"provider":  provider,
		"model":     model,
		"component": "query",
	}

	pm.collector.Timer("deepcision_query_duration", duration, labels)

	if cached {
		pm.collector.Counter("deepcision_queries_cached", 1, labels)
	}
	if success {
		pm.collector.Counter("deepcision_queries_successful", 1, labels)
	} else {
		pm.collector.Counter("deepcision_queries_failed", 1, labels)
	}
}

// RecordDecisionMetrics records metrics for a panel decision run
func (pm *PerformanceMonitor) RecordDecisionMetrics(roleCount int, duration time.Duration, successful, failed int) {
	if !pm.enabled {
		return
	}

	labels := map[string]string{"component": "decision"}

	pm.collector.Timer("deepcision_decision_panel_duration", duration, labels)
	pm.collector.Gauge("deepcision_decision_roles", float64(roleCount), labels)
	pm.collector.Counter("deepcision_decision_answers_successful", float64(successful), labels)
	pm.collector.Counter("deepcision_decision_answers_failed", float64(failed), labels)

	// Calculate success rate
	total := successful + failed
	if total > 0 {
		successRate := float64(successful) / float64(total) * 100
		pm.collector.Gauge("deepcision_decision_success_rate", successRate, labels)
	}
}

// RecordSearchMetrics records metrics for web search operations
func (pm *PerformanceMonitor) RecordSearchMetrics(provider string, resultCount int, duration time.Duration, success bool) {
	if !pm.enabled {
		return
	}

	labels := map[string]string{
		"provider":  provider,
		"component": "search",
	}

	pm.collector.Timer("deepcision_search_duration", duration, labels)
	pm.collector.Gauge("deepcision_search_results", float64(resultCount), labels)

	if success {
		pm.collector.Counter("deepcision_searches_successful", 1, labels)
	} else {
		pm.collector.Counter("deepcision_searches_failed", 1, labels)
	}
}

// RecordCacheMetrics records the persisted cache footprint
func (pm *PerformanceMonitor) RecordCacheMetrics(entries, sizeBytes int64) {
	if !pm.enabled {
		return
	}

	labels := map[string]string{"component": "cache"}

	pm.collector.Gauge("deepcision_cache_entries", float64(entries), labels)
	pm.collector.Gauge("deepcision_cache_size_bytes", float64(sizeBytes), labels)
}

// Shutdown stops the performance monitor
func (pm *PerformanceMonitor) Shutdown() {
	if pm.cancel != nil {
		pm.cancel()
	}
}

// TimerScope represents a scoped timer for measuring durations
type TimerScope struct {
	startTime time.Time
	name      string
	labels    map[string]string
	collector *Collector
}

// NewTimerScope creates a new timer scope
func NewTimerScope(name string, labels map[string]string) *TimerScope {
	return &TimerScope{
		startTime: time.Now(),
		name:      name,
		labels:    labels,
		collector: GetGlobal(),
	}
}

// End completes the timer and records the duration
func (ts *TimerScope) End() time.Duration {
	duration := time.Since(ts.startTime)
	ts.collector.Timer(ts.name, duration, ts.labels)
	return duration
}

// WithTimerScope executes a function and measures its duration
func WithTimerScope(name string, labels map[string]string, fn func()) time.Duration {
	timer := NewTimerScope(name, labels)
	fn()
	return timer.End()
}
