package gpu

import "sync"

// parallelThreshold is the minimum invocation count to use the workers.
// Below this, running inline is faster than the channel round trip.
const parallelThreshold = 64

// workChunk represents a range of invocations for a worker to process.
type workChunk struct {
	start, end int
	body       func(lo, hi int)
}

// workerPool holds persistent goroutines that execute pass chunks.
type workerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &workerPool{numWorkers: numWorkers}
}

// start launches the worker goroutines. Workers are started lazily on the
// first dispatch that crosses parallelThreshold.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.body(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// dispatch splits [0, n) into one contiguous chunk per worker and blocks
// until every chunk has run.
func (p *workerPool) dispatch(n int, body func(lo, hi int)) {
	if n < parallelThreshold || p.numWorkers == 1 {
		body(0, n)
		return
	}
	if !p.running {
		p.start()
	}

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
