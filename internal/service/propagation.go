package service

import (
	"context"
	"log"
	"sync"
)

// propagationStep is one best-effort downstream update. Steps never affect
// control flow: a failure is logged against the step name and swallowed.
type propagationStep struct {
	name string
	run  func(ctx context.Context) error
}

// propagate dispatches the steps concurrently and waits for all of them.
// Per-destination outcomes exist purely for logging; the primary mutation
// has already been committed by the time this runs.
func propagate(ctx context.Context, steps []propagationStep) {
	var wg sync.WaitGroup
	for _, step := range steps {
		wg.Add(1)
		go func(step propagationStep) {
			defer wg.Done()
			if err := step.run(ctx); err != nil {
				log.Printf("[warn] propagation %s: %v", step.name, err)
			}
		}(step)
	}
	wg.Wait()
}
