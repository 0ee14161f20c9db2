package gateway

import "github.com/prometheus/client_golang/prometheus"

// Transport exposes registered handlers to callers over some wire protocol.
type Transport interface {
	Close() error
	Register(method string, hdl *Handler)
	RegisterMetrics(responseTime *prometheus.HistogramVec, errorCount *prometheus.CounterVec)
}

// RawBody is a reply result written verbatim instead of being JSON encoded.
// A non-empty Filename marks it as a download.
type RawBody struct {
	ContentType string
	Filename    string
	Data        []byte
}
