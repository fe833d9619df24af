package monitor

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var processStart = time.Now()

// Diagnostics is the self-observation block served by /api/health.
type Diagnostics struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryRSS     uint64  `json:"memoryRssBytes"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// CollectDiagnostics samples this process's resource usage. Sampling
// failures degrade to zero values rather than erroring; health reporting
// must never fail a request.
func CollectDiagnostics() Diagnostics {
	d := Diagnostics{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(processStart).Seconds(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return d
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		d.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		d.MemoryRSS = mem.RSS
	}
	return d
}
