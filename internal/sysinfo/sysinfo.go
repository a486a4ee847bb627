// Package sysinfo reports host load for the status command.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type Stats struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Read samples CPU usage since the previous call and current memory use.
func Read(ctx context.Context) (Stats, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("reading memory: %w", err)
	}

	var s Stats
	if len(cpuPct) > 0 {
		s.CPUPercent = cpuPct[0]
	}
	s.MemoryPercent = vm.UsedPercent
	return s, nil
}
