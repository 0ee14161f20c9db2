// Package batch scores a CSV of instances through the ML API in bounded,
// rate-limited batches.
package batch

import (
	"context"
	"sync"

	"github.com/Jeffail/tunny"
	"github.com/cockroachdb/errors"
	"github.com/xizhibei/go-estimator-gateway/predict"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Predictor answers a prediction request.
type Predictor interface {
	Predict(ctx context.Context, req *predict.Request) (*predict.Response, error)
}

// Runner splits a Table into batches and predicts them concurrently.
type Runner struct {
	predictor Predictor
	options   options
	log       *zap.SugaredLogger
}

// NewRunner creates a Runner sending batches to predictor.
func NewRunner(predictor Predictor, opts ...Option) *Runner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize <= 0 {
		o.batchSize = 1
	}
	if o.workerNum <= 0 {
		o.workerNum = 1
	}
	if o.burst <= 0 {
		o.burst = 1
	}

	return &Runner{
		predictor: predictor,
		options:   o,
		log:       zap.S().With("module", "batch.runner"),
	}
}

// Run predicts every row of t and returns the predictions in row order.
// The first failing batch cancels the rest and its error is returned.
func (r *Runner) Run(parent context.Context, t *Table) ([]float64, error) {
	predictions := make([]float64, len(t.Rows))
	if len(t.Rows) == 0 {
		return predictions, nil
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pool := tunny.NewCallback(r.options.workerNum)
	defer pool.Close()
	limiter := rate.NewLimiter(r.options.rps, r.options.burst)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	batches := 0
	for start := 0; start < len(t.Rows); start += r.options.batchSize {
		end := start + r.options.batchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}

		if err := limiter.Wait(ctx); err != nil {
			fail(errors.Wrap(err, "wait for rate limiter"))
			break
		}

		batches++
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			pool.Process(func() {
				if ctx.Err() != nil {
					return
				}
				preds, err := r.predictBatch(ctx, t, start, end)
				if err != nil {
					fail(errors.Wrapf(err, "rows %d-%d", start+1, end))
					return
				}
				copy(predictions[start:end], preds)
			})
		}(start, end)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, errors.Wrap(err, "batch run interrupted")
	}

	r.log.Infof("Predicted %d rows in %d batches", len(t.Rows), batches)
	return predictions, nil
}

func (r *Runner) predictBatch(ctx context.Context, t *Table, start, end int) ([]float64, error) {
	instances := make([]map[string]float64, 0, end-start)
	for i := start; i < end; i++ {
		instances = append(instances, t.Instance(i))
	}

	req, err := predict.NewBatch(instances)
	if err != nil {
		return nil, err
	}

	res, err := r.predictor.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	r.log.Debugf("Batch %d-%d done", start+1, end)
	return res.Predictions(), nil
}
