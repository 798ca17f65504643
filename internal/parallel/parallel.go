// Package parallel fans row-independent tensor loops out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Upper bound on goroutines per call.
	MinWork    int  // Minimum scalar operations per goroutine.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinWork:    1 << 14,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinWork: 1}
}

// For executes f(i) for i in [0, n), where each call costs roughly
// workPerItem scalar operations. Items are split into contiguous chunks so
// that every goroutine gets at least cfg.MinWork operations; small loops run
// on the calling goroutine. For returns after every f has returned.
func For(n, workPerItem int, f func(i int), cfg Config) {
	workers := numWorkers(n, workPerItem, cfg)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForPairs executes f(o, i) over an outer×inner grid, the layout of a
// reduction along a middle tensor dimension.
func ForPairs(outer, inner, workPerItem int, f func(o, i int), cfg Config) {
	For(outer*inner, workPerItem, func(k int) {
		f(k/inner, k%inner)
	}, cfg)
}

func numWorkers(n, workPerItem int, cfg Config) int {
	if !cfg.Enabled || n < 2 {
		return 1
	}
	minWork := max(cfg.MinWork, 1)
	byWork := n * max(workPerItem, 1) / minWork
	return max(1, min(cfg.NumWorkers, n, byWork))
}
