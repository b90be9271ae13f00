// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run produces exactly n MeasurementBundles under the null hypothesis using a
// fixed pool of workers. Jobs carry pre-drawn seeds so every realization is
// independent of scheduling; results are returned in arrival order, which is
// not the submission order. A failing worker cancels the whole run and the
// error surfaces instead of the drain loop blocking forever.
func (c *SurrogateCoordinator) Run(n, workers int, seed int64) ([]*MeasurementBundle, error) {
	if n < 0 {
		return nil, fmt.Errorf("surrogate count must be >= 0, got %d", n)
	}
	if workers < 1 {
		return nil, fmt.Errorf("need at least one worker, got %d", workers)
	}

	// Per-job seeds drawn up front from a master RNG, so workers never share
	// random state.
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	masterRng := rand.New(rand.NewSource(seed))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = masterRng.Int63()
	}

	jobs := make(chan int)
	resultsCh := make(chan *MeasurementBundle, n)

	g, ctx := errgroup.WithContext(context.Background())

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case b, ok := <-jobs:
					if !ok {
						return nil
					}
					gen := c.Template.NewGenerator(seeds[b])
					realization := gen.Realization()
					reimposeSeasonality(realization, c.Cycle)
					center(realization)

					bundle, err := computeInformationMeasures(realization, c.Scales, c.Config)
					if err != nil {
						return fmt.Errorf("surrogate %d: %w", b, err)
					}
					select {
					case resultsCh <- bundle:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	// Feed the queue, then close it so idle workers terminate.
	g.Go(func() error {
		defer close(jobs)
		for b := 0; b < n; b++ {
			select {
			case jobs <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(resultsCh)
		done <- err
	}()

	results := make([]*MeasurementBundle, 0, n)
	for bundle := range resultsCh {
		results = append(results, bundle)
		fmt.Printf("\rsurrogates done: %d/%d", len(results), n)
	}
	if n > 0 {
		fmt.Println()
	}

	if err := <-done; err != nil {
		return nil, err
	}
	if len(results) != n {
		return nil, fmt.Errorf("expected %d surrogate results, got %d", n, len(results))
	}
	return results, nil
}
