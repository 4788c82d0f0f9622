// Package sysinfo collects the host facts reported by the system_info
// command.
package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/gaspardpetit/focushost/internal/logx"
)

// Info describes the machine the handler runs on.
type Info struct {
	Platform        string  `json:"platform"`
	Arch            string  `json:"arch"`
	Hostname        string  `json:"hostname,omitempty"`
	OS              string  `json:"os,omitempty"`
	PlatformVersion string  `json:"platform_version,omitempty"`
	KernelVersion   string  `json:"kernel_version,omitempty"`
	UptimeSeconds   uint64  `json:"uptime_seconds,omitempty"`
	CPUs            int     `json:"cpus"`
	MemoryTotal     uint64  `json:"memory_total,omitempty"`
	MemoryAvailable uint64  `json:"memory_available,omitempty"`
	MemoryUsedPct   float64 `json:"memory_used_percent,omitempty"`
	Load1           float64 `json:"load1,omitempty"`
	Load5           float64 `json:"load5,omitempty"`
	Load15          float64 `json:"load15,omitempty"`
}

// Collect gathers Info. Probes that are unsupported on the current
// platform are logged and left out; Platform, Arch and CPUs are always
// filled.
func Collect(ctx context.Context) Info {
	info := Info{
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.OS = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
		info.UptimeSeconds = h.Uptime
	} else {
		logx.Log.Debug().Err(err).Msg("host info unavailable")
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUs = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryAvailable = vm.Available
		info.MemoryUsedPct = vm.UsedPercent
	} else {
		logx.Log.Debug().Err(err).Msg("memory info unavailable")
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1, info.Load5, info.Load15 = avg.Load1, avg.Load5, avg.Load15
	} else {
		logx.Log.Debug().Err(err).Msg("load average unavailable")
	}
	return info
}
