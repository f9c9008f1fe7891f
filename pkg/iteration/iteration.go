// Package iteration runs a function once per element of a list-shaped value,
// either sequentially or with a bounded worker pool. The pipeline uses it to
// fan a node out over every element of an array input.
package iteration

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Strategy selects how elements are processed.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
)

// Config holds iteration settings.
type Config struct {
	Strategy      Strategy
	MaxConcurrent int // 0 means runtime.NumCPU()
}

// ElementFunc is invoked for each element with its position in the list.
type ElementFunc func(ctx context.Context, element interface{}, index int) (interface{}, error)

// Iterator applies an ElementFunc across a list according to its config.
type Iterator struct {
	config Config
}

// New creates an iterator. MaxConcurrent defaults to the CPU count.
func New(config Config) *Iterator {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = runtime.NumCPU()
	}
	return &Iterator{config: config}
}

// ForEach processes every element and returns the outputs in input order.
// Processing is fail-fast: the first element error aborts the run.
func (it *Iterator) ForEach(ctx context.Context, elements []interface{}, fn ElementFunc) ([]interface{}, error) {
	if len(elements) == 0 {
		return []interface{}{}, nil
	}

	if it.config.Strategy == StrategyParallel {
		return it.forEachParallel(ctx, elements, fn)
	}
	return it.forEachSequential(ctx, elements, fn)
}

func (it *Iterator) forEachSequential(ctx context.Context, elements []interface{}, fn ElementFunc) ([]interface{}, error) {
	results := make([]interface{}, len(elements))

	for i, element := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		output, err := fn(ctx, element, i)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		results[i] = output
	}

	return results, nil
}

func (it *Iterator) forEachParallel(ctx context.Context, elements []interface{}, fn ElementFunc) ([]interface{}, error) {
	results := make([]interface{}, len(elements))

	workers := it.config.MaxConcurrent
	if workers > len(elements) {
		workers = len(elements)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexes := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				output, err := fn(ctx, elements[i], i)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("element %d: %w", i, err)
						cancel()
					}
				} else {
					results[i] = output
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range elements {
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
