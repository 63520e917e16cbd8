package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// ProfilingServer provides HTTP endpoints for Go profiling
type ProfilingServer struct {
	server *http.Server
	addr   string
}

// NewProfilingServer creates a new profiling server
func NewProfilingServer(addr string) *ProfilingServer {
	return &ProfilingServer{
		addr: addr,
	}
}

// Start starts the profiling server with pprof endpoints
func (ps *ProfilingServer) Start() error {
	mux := http.NewServeMux()

	// Add custom profiling endpoints
	mux.HandleFunc("/debug/stats", ps.statsHandler)
	mux.HandleFunc("/debug/gc", ps.gcHandler)
	mux.HandleFunc("/debug/build", ps.buildInfoHandler)

	// pprof endpoints are automatically registered at /debug/pprof/ when imported

	ps.server = &http.Server{
		Addr:    ps.addr,
		Handler: mux,
	}

	log.Info().Str("addr", ps.addr).Msg("Starting profiling server")
	return ps.server.ListenAndServe()
}

// Shutdown gracefully shuts down the profiling server
func (ps *ProfilingServer) Shutdown(ctx context.Context) error {
	if ps.server != nil {
		return ps.server.Shutdown(ctx)
	}
	return nil
}

// statsHandler provides runtime statistics
func (ps *ProfilingServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := map[string]interface{}{
		"memory": map[string]interface{}{
			"alloc_mb":         bToMb(m.Alloc),
			"total_alloc_mb":   bToMb(m.TotalAlloc),
			"sys_mb":           bToMb(m.Sys),
			"heap_alloc_mb":    bToMb(m.HeapAlloc),
			"heap_sys_mb":      bToMb(m.HeapSys),
			"heap_idle_mb":     bToMb(m.HeapIdle),
			"heap_inuse_mb":    bToMb(m.HeapInuse),
			"heap_released_mb": bToMb(m.HeapReleased),
			"heap_objects":     m.HeapObjects,
			"stack_inuse_mb":   bToMb(m.StackInuse),
			"stack_sys_mb":     bToMb(m.StackSys),
		},
		"gc": map[string]interface{}{
			"num_gc":          m.NumGC,
			"num_forced_gc":   m.NumForcedGC,
			"gc_cpu_fraction": m.GCCPUFraction,
			"pause_total_ns":  m.PauseTotalNs,
			"pause_ns":        m.PauseNs[(m.NumGC+255)%256],
		},
		"goroutines": runtime.NumGoroutine(),
		"cpu_cores":  runtime.NumCPU(),
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
		"timestamp":  time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// gcHandler triggers garbage collection
func (ps *ProfilingServer) gcHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	before := time.Now()
	runtime.GC()
	duration := time.Since(before)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":     "Garbage collection triggered",
		"duration_ms": duration.Seconds() * 1000,
		"timestamp":   time.Now(),
	})
}

// buildInfoHandler provides build information
func (ps *ProfilingServer) buildInfoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
		"compiler":   runtime.Compiler,
		"num_cpu":    runtime.NumCPU(),
		"max_procs":  runtime.GOMAXPROCS(0),
	})
}

// bToMb converts bytes to megabytes
func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}

// PerformanceProfiler provides performance profiling utilities
type PerformanceProfiler struct {
	enabled bool
	server  *ProfilingServer
}

// NewPerformanceProfiler creates a new performance profiler
func NewPerformanceProfiler(enabled bool, addr string) *PerformanceProfiler {
	var server *ProfilingServer
	if enabled {
		server = NewProfilingServer(addr)
	}

	return &PerformanceProfiler{
		enabled: enabled,
		server:  server,
	}
}

// Start starts the performance profiler
func (pp *PerformanceProfiler) Start() error {
	if !pp.enabled || pp.server == nil {
		return nil
	}

	go func() {
		if err := pp.server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Performance profiler server failed")
		}
	}()

	return nil
}

// Shutdown stops the performance profiler
func (pp *PerformanceProfiler) Shutdown() error {
	if pp.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pp.server.Shutdown(ctx)
	}
	return nil
}

// ProfileFunction profiles the execution of a function
func ProfileFunction(name string, fn func()) (time.Duration, error) {
	start := time.Now()

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	fn()

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	duration := time.Since(start)

	labels := map[string]string{
		"function":  name,
		"component": "profiler",
	}

	GetGlobal().Timer("function_execution_duration", duration, labels)
	GetGlobal().Gauge("function_memory_delta_mb",
		float64(memAfter.Alloc-memBefore.Alloc)/1024/1024, labels)

	return duration, nil
}

// MemorySnapshot captures a memory snapshot for analysis
type MemorySnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	AllocMB      float64   `json:"alloc_mb"`
	TotalAllocMB float64   `json:"total_alloc_mb"`
	SysMB        float64   `json:"sys_mb"`
	NumGC        uint32    `json:"num_gc"`
	Goroutines   int       `json:"goroutines"`
}

// TakeMemorySnapshot captures current memory state
func TakeMemorySnapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemorySnapshot{
		Timestamp:    time.Now(),
		AllocMB:      bToMb(m.Alloc),
		TotalAllocMB: bToMb(m.TotalAlloc),
		SysMB:        bToMb(m.Sys),
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
	}
}
