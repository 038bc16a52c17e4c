package classify

import (
	"runtime"
	"sync"
	"time"
)

// ParallelClassify runs Classify on every job with a pool of workers and
// returns the results as they finish. Chromosomes vary widely in size, so
// the order is not the submission order; OrderedCollect restores it.
// workers <= 0 means runtime.NumCPU(). The pool never exceeds the number of
// jobs already queued when it starts, if any are.
func (c *Classifier) ParallelClassify(jobs <-chan Job, workers int) <-chan Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queued := len(jobs); queued > 0 && queued < workers {
		workers = queued
	}

	out := make(chan Result, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				start := time.Now()
				res := c.Classify(job)
				res.Elapsed = time.Since(start)
				out <- res
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// OrderedCollect passes results to fn by ascending Seq, starting at 0,
// holding back any that finish early. When fn fails, the remaining results
// are discarded so the workers can exit, and the error is returned.
func OrderedCollect(results <-chan Result, fn func(Result) error) error {
	held := make(map[int]Result)
	next := 0

	for r := range results {
		held[r.Seq] = r
		for {
			ready, ok := held[next]
			if !ok {
				break
			}
			delete(held, next)
			next++

			if err := fn(ready); err != nil {
				for range results {
				}
				return err
			}
		}
	}
	return nil
}
