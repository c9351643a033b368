package vectorindex

import (
	"runtime"
	"sync"
)

// ParallelThreshold is the row count above which SearchParallel splits the
// scan across goroutines.
const ParallelThreshold = 20000

// SearchParallel returns the same hits as Search, scanning disjoint row
// ranges concurrently. workers <= 0 uses GOMAXPROCS. Small indexes are
// scanned on the calling goroutine.
func (f *Flat) SearchParallel(query []float32, k, workers int) ([]Hit, error) {
	if f.Len() < ParallelThreshold {
		return f.Search(query, k)
	}
	q, err := f.prepare(query)
	if err != nil || q == nil {
		return []Hit{}, err
	}
	k = ClampK(k, f.Len())
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (f.Len() + workers - 1) / workers

	partial := make([]*topK, 0, workers)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for start := 0; start < f.Len(); start += chunk {
		end := min(start+chunk, f.Len())
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			h := f.scan(q, k, from, to)
			mu.Lock()
			partial = append(partial, h)
			mu.Unlock()
		}(start, end)
	}
	wg.Wait()

	merged := newTopK(k)
	for _, h := range partial {
		merged.merge(h)
	}
	return merged.sorted(), nil
}
