// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Point-in-time stats snapshot combining server, pool, tracker and
// process-level memory figures.

package control

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/momentics/linewire/core/buffer"
	"github.com/momentics/linewire/core/mem"
)

// StatsSource is implemented by the server.
type StatsSource interface {
	ConnectionCount() int
	PoolStats() map[int]buffer.PoolStats
	Tracker() *mem.Tracker
}

// Snapshot is a point-in-time view of resource usage.
type Snapshot struct {
	Taken         time.Time
	Connections   int
	Pools         map[int]buffer.PoolStats
	MemCurrent    int64
	MemPeak       int64
	MemLimit      int64
	LimitExceeded bool
	ProcessRSS    uint64 // 0 when process stats are unavailable
}

// Collect gathers a snapshot from src. Process RSS comes from the OS via
// gopsutil; failures there degrade to zero rather than erroring, since the
// snapshot is observational.
func Collect(src StatsSource) Snapshot {
	tr := src.Tracker()
	s := Snapshot{
		Taken:         time.Now(),
		Connections:   src.ConnectionCount(),
		Pools:         src.PoolStats(),
		MemCurrent:    tr.Current(),
		MemPeak:       tr.Peak(),
		MemLimit:      tr.Limit(),
		LimitExceeded: tr.LimitExceeded(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			s.ProcessRSS = info.RSS
		}
	}
	return s
}
