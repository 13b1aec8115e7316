// File: core/buffer/poolset.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "github.com/momentics/linewire/core/mem"

// ClassConfig describes one buffer size class.
type ClassConfig struct {
	Size     int // buffer capacity in bytes
	MaxCount int // maximum outstanding buffers of this class
}

// DefaultClasses are the stock size classes: small covers chat-style
// payloads, medium typical state updates, large bulk replies.
var DefaultClasses = []ClassConfig{
	{Size: 256, MaxCount: 100},
	{Size: 1024, MaxCount: 50},
	{Size: 4096, MaxCount: 20},
}

// PoolSet routes buffer requests to the smallest size class that fits.
// All pools share one tracker, so the memory ceiling spans every class.
type PoolSet struct {
	pools []*Pool // ascending by buffer size
}

// NewPoolSet builds one pool per class. Classes must be given in ascending
// size order.
func NewPoolSet(classes []ClassConfig, tracker *mem.Tracker) *PoolSet {
	ps := &PoolSet{pools: make([]*Pool, 0, len(classes))}
	for _, c := range classes {
		ps.pools = append(ps.pools, NewPool(c.Size, c.MaxCount, tracker))
	}
	return ps
}

// For returns the pool whose buffer size is the smallest class >= size,
// falling back to the biggest class for oversized requests (whose Append
// will then fail and surface api.ErrBufferFull to the caller).
func (ps *PoolSet) For(size int) *Pool {
	for _, p := range ps.pools {
		if size <= p.size {
			return p
		}
	}
	return ps.pools[len(ps.pools)-1]
}

// Stats returns per-class snapshots keyed by buffer size.
func (ps *PoolSet) Stats() map[int]PoolStats {
	out := make(map[int]PoolStats, len(ps.pools))
	for _, p := range ps.pools {
		out[p.size] = p.Stats()
	}
	return out
}
