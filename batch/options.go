package batch

import (
	"runtime"

	"golang.org/x/time/rate"
)

type options struct {
	batchSize int
	workerNum int
	rps       rate.Limit
	burst     int
}

// Option configures a Runner.
type Option func(o *options)

// WithBatchSize sets how many rows go into one upstream call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithWorkerNum sets how many batches may be in flight at once.
func WithWorkerNum(n int) Option {
	return func(o *options) {
		o.workerNum = n
	}
}

// WithRate paces batch submission to rps batches per second. rps <= 0 removes the limit.
func WithRate(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.rps = rate.Inf
		} else {
			o.rps = rate.Limit(rps)
		}
		o.burst = burst
	}
}

func defaultOptions() options {
	return options{
		batchSize: 256,
		workerNum: runtime.NumCPU(),
		rps:       rate.Inf,
		burst:     1,
	}
}
