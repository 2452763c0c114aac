package pipeline

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// Executor runs a per-particle sweep over [0, n). body receives the worker
// id, which selects that worker's Context, and a half-open slot range. Run
// returns once every range has been processed.
type Executor interface {
	Workers() int
	Run(n int, body func(worker, lo, hi int))
	Close()
}

// Serial runs every sweep on the calling goroutine.
type Serial struct{}

// NewSerial returns the serial executor.
func NewSerial() Serial { return Serial{} }

func (Serial) Workers() int { return 1 }

func (Serial) Run(n int, body func(worker, lo, hi int)) {
	if n > 0 {
		body(0, 0, n)
	}
}

func (Serial) Close() {}

// workChunk represents a range of slots for a worker to process.
type workChunk struct {
	start, end int
	body       func(worker, lo, hi int)
}

// Parallel splits sweeps into contiguous chunks processed by a persistent
// worker pool. Each chunk writes only its own slots, so results match
// Serial exactly.
type Parallel struct {
	numWorkers int

	mu       sync.Mutex
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewParallel returns a pool of n workers. n <= 0 uses GOMAXPROCS.
// Workers start on the first sweep large enough to need them.
func NewParallel(n int) *Parallel {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Parallel{numWorkers: n}
}

// Workers returns the pool size.
func (p *Parallel) Workers() int { return p.numWorkers }

// Run dispatches chunks and waits for all of them.
func (p *Parallel) Run(n int, body func(worker, lo, hi int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		body(0, 0, n)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.startWorkers()

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, body: body}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// startWorkers launches persistent worker goroutines. Caller holds mu.
func (p *Parallel) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Parallel) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.body(workerID, chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// Close signals all workers to exit and waits for them. The pool restarts
// on the next Run.
func (p *Parallel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
