package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/dronewatch/internal/models"
	"golang.org/x/time/rate"
)

// BatchOpts configures [DetectionFeed.LogBatch].
type BatchOpts struct {
	NumWorkers int     // Concurrent senders (default: 2, max: 10)
	RateLimit  float64 // Requests per second (default: 5)
}

// LogResult is the outcome of posting one detection.
type LogResult struct {
	Index     int
	Detection models.Detection
	Err       error
}

// BatchResult summarizes a batch. Results are in input order.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []LogResult
}

func (o BatchOpts) withDefaults() BatchOpts {
	if o.NumWorkers <= 0 {
		o.NumWorkers = 2
	}
	if o.NumWorkers > 10 {
		o.NumWorkers = 10
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5
	}
	return o
}

// LogBatch posts every detection as its own request, throttled by a rate limiter.
//
// Failures are recorded per item and never retried. Once ctx ends the remaining items fail with its error.
func (f *DetectionFeed) LogBatch(ctx context.Context, prog chan<- ProgressUpdate, detections []models.Detection, opts BatchOpts) *BatchResult {
	opts = opts.withDefaults()

	result := &BatchResult{
		Total:   len(detections),
		Results: make([]LogResult, len(detections)),
	}
	if len(detections) == 0 {
		return result
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan int, len(detections))
	results := make(chan LogResult, len(detections))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := LogResult{Index: i, Detection: detections[i]}
				if err := limiter.Wait(ctx); err != nil {
					res.Err = err
				} else {
					res.Err = f.Log(ctx, detections[i])
				}
				results <- res
			}
		}()
	}

	for i := range detections {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results[res.Index] = res
		if res.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
		sendProgress(prog, loggedDetectionUpdate(completed, result.Total, res))
	}

	f.logger.Info("detection batch logged", "total", result.Total, "ok", result.Succeeded, "failed", result.Failed)
	return result
}
