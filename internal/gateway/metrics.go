package gateway

import (
	"runtime"
	"time"
)

// Status is the payload of a status message.
type Status struct {
	Clients     int     `json:"clients"`
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	GCRuns      uint32  `json:"gc_runs"`
	UptimeSec   int64   `json:"uptime_sec"`
	FrameP50    float64 `json:"frame_p50_ms"`
	FrameP95    float64 `json:"frame_p95_ms"`
	FrameP99    float64 `json:"frame_p99_ms"`
	TS          string  `json:"ts"`
}

// CollectStatus gathers process stats. Client and latency fields are left
// for the caller.
func CollectStatus(start time.Time) Status {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Status{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		SysMB:       float64(ms.Sys) / 1024 / 1024,
		GCRuns:      ms.NumGC,
		UptimeSec:   int64(time.Since(start).Seconds()),
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
	}
}
