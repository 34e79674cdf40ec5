package api

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemMetrics samples host CPU, memory and disk usage for the health
// endpoint. Failures degrade to zero values rather than failing the check.
func systemMetrics() map[string]any {
	metrics := map[string]any{
		"cpu_usage":  0.0,
		"memory":     map[string]any{"used_percent": 0.0, "total_mb": 0.0, "used_mb": 0.0},
		"disk_space": map[string]any{"used_percent": 0.0, "total_gb": 0.0, "free_gb": 0.0},
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		metrics["cpu_usage"] = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		metrics["memory"] = map[string]any{
			"used_percent": vm.UsedPercent,
			"total_mb":     float64(vm.Total) / (1 << 20),
			"used_mb":      float64(vm.Used) / (1 << 20),
		}
	}

	if du, err := disk.Usage("/"); err == nil {
		metrics["disk_space"] = map[string]any{
			"used_percent": du.UsedPercent,
			"total_gb":     float64(du.Total) / (1 << 30),
			"free_gb":      float64(du.Free) / (1 << 30),
		}
	}

	return metrics
}
