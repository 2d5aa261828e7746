package idw

import (
	"runtime"
	"sync"

	"github.com/i474232898/airquality-idw/internal/geo"
)

// Result is the outcome of estimating a single query point in a batch.
type Result struct {
	Query geo.Coordinate `json:"query"`
	Value float64        `json:"value"`
	Err   error          `json:"-"`
}

// EstimateBatch estimates every query against the same samples. Queries are
// spread over a fixed pool of goroutines; results[i] always belongs to
// queries[i].
func EstimateBatch(queries []geo.Coordinate, samples []Sample, power float64) []Result {
	return batch(queries, func(q geo.Coordinate) (float64, error) {
		return Estimate(q, samples, power)
	})
}

// EstimateBatchNearest is EstimateBatch restricted, per query, to the n
// nearest samples.
func EstimateBatchNearest(queries []geo.Coordinate, samples []Sample, power float64, n int) []Result {
	return batch(queries, func(q geo.Coordinate) (float64, error) {
		return Estimate(q, Nearest(q, samples, n), power)
	})
}

func batch(queries []geo.Coordinate, estimate func(geo.Coordinate) (float64, error)) []Result {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(queries) {
		workers = len(queries)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := estimate(queries[i])
				results[i] = Result{Query: queries[i], Value: v, Err: err}
			}
		}()
	}

	for i := range queries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
