package system

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats is a snapshot of the machine and of this process
type HostStats struct {
	LogicalCPUs  int
	PhysicalCPUs int
	TotalMemory  uint64
	UsedPercent  float64
	ProcessRSS   uint64
}

// ReadHostStats collects what gopsutil can see. Missing values stay zero.
func ReadHostStats() HostStats {
	s := HostStats{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		s.LogicalCPUs = n
	}
	if n, err := cpu.Counts(false); err == nil {
		s.PhysicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemory = vm.Total
		s.UsedPercent = vm.UsedPercent
	}
	// Ошибки gopsutil не критичны: поле просто остается нулевым
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			s.ProcessRSS = mi.RSS
		}
	}
	return s
}

// DefaultWorkers picks the render worker count: one per physical core,
// falling back to the logical count.
func DefaultWorkers() int {
	s := ReadHostStats()
	if s.PhysicalCPUs > 0 {
		return s.PhysicalCPUs
	}
	return max(s.LogicalCPUs, 1)
}

func (s HostStats) String() string {
	return fmt.Sprintf("CPU: %d logical / %d physical | RAM: %s (%.1f%% used) | RSS: %s",
		s.LogicalCPUs, s.PhysicalCPUs, formatBytes(s.TotalMemory), s.UsedPercent, formatBytes(s.ProcessRSS))
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
