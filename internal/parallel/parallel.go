// Package parallel provides the execution utilities used to fan out
// independent, side-effect-free batch evaluations.
//
// Gradient and cost computation for independent batches is embarrassingly
// parallel; parameter mutation is not. Callers fan out with For or MapErr
// only over read-only work and aggregate at a serialization point before any
// parameter is touched.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
	MinItems   int  // Minimum items before fanning out, to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinItems:   4,
	}
}

// Sequential returns a config that disables fan-out entirely.
func Sequential() Config {
	return Config{}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too
// small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinItems || cfg.NumWorkers < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
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

// MapErr executes f(i) for i in [0, n), collecting one result per index.
// The first error encountered (by index order) is returned alongside the
// results gathered so far.
func MapErr[T any](n int, f func(i int) (T, error), cfg Config) ([]T, error) {
	results := make([]T, n)
	errs := make([]error, n)
	For(n, func(i int) {
		results[i], errs[i] = f(i)
	}, cfg)
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
