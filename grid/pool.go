package grid

// DefaultMaxPoolSize bounds the number of recycled cell buffers.
const DefaultMaxPoolSize = 1000

// cellPool recycles cell buffers released when the grid is reconfigured, so
// a resize does not throw away every list's capacity.
type cellPool struct {
	free    [][]int32
	maxSize int

	// counters for PoolStats
	reused, allocated, dropped int
}

func newCellPool(maxSize int) *cellPool {
	if maxSize < 0 {
		maxSize = 0
	}
	return &cellPool{maxSize: maxSize}
}

// get returns an empty buffer, recycled when possible.
func (p *cellPool) get() []int32 {
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.reused++
		return buf[:0]
	}
	p.allocated++
	return make([]int32, 0, 4)
}

// put returns a buffer to the pool. Buffers beyond the limit are dropped.
func (p *cellPool) put(buf []int32) {
	if cap(buf) == 0 {
		return
	}
	if len(p.free) >= p.maxSize {
		p.dropped++
		return
	}
	p.free = append(p.free, buf[:0])
}

// PoolStats reports buffer recycling counters.
type PoolStats struct {
	Pooled    int // buffers currently held
	Reused    int // buffers handed out from the pool
	Allocated int // buffers created fresh
	Dropped   int // buffers discarded because the pool was full
}

func (p *cellPool) stats() PoolStats {
	return PoolStats{
		Pooled:    len(p.free),
		Reused:    p.reused,
		Allocated: p.allocated,
		Dropped:   p.dropped,
	}
}
