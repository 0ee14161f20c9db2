// Package upstream is the HTTP client for the ML inference API
// (the service exposing /health, /model-info and /predict).
package upstream

//go:generate mockgen -source=client.go -destination=mock/mock_upstream.go

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xizhibei/go-estimator-gateway/compressor"
	"github.com/xizhibei/go-estimator-gateway/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	PathHealth    = "/health"
	PathModelInfo = "/model-info"
	PathPredict   = "/predict"

	maxBodyBytes = 32 << 20
)

var (
	// ErrInvalidJSON is returned when a 2xx body is not JSON.
	ErrInvalidJSON = errors.New("ML API returned a non-JSON body")
)

// Client talks to the ML API.
type Client interface {
	// Health returns the /health body.
	Health(ctx context.Context) (json.RawMessage, error)

	// ModelInfo returns the /model-info body.
	ModelInfo(ctx context.Context) (json.RawMessage, error)

	// Predict posts req to /predict and returns the raw 200 body.
	Predict(ctx context.Context, req *BatchRequest) ([]byte, error)
}

// Timeouts bounds each ML API operation.
type Timeouts struct {
	Health    time.Duration
	ModelInfo time.Duration
	Predict   time.Duration
}

// DefaultTimeouts are the per-operation bounds used when none are configured.
var DefaultTimeouts = Timeouts{
	Health:    3 * time.Second,
	ModelInfo: 3 * time.Second,
	Predict:   5 * time.Second,
}

type clientOptions struct {
	httpClient *http.Client
	timeouts   Timeouts
	telemetry  *telemetry.Telemetry
}

// ClientOption is a functional option for configuring the HTTP client.
type ClientOption func(o *clientOptions)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithTimeouts sets per-operation timeouts. Zero fields keep their default.
func WithTimeouts(t Timeouts) ClientOption {
	return func(o *clientOptions) {
		if t.Health > 0 {
			o.timeouts.Health = t.Health
		}
		if t.ModelInfo > 0 {
			o.timeouts.ModelInfo = t.ModelInfo
		}
		if t.Predict > 0 {
			o.timeouts.Predict = t.Predict
		}
	}
}

// WithTelemetry records a span and a latency sample per call.
func WithTelemetry(tel *telemetry.Telemetry) ClientOption {
	return func(o *clientOptions) {
		o.telemetry = tel
	}
}

// HTTPClient is the Client implementation over HTTP/JSON.
type HTTPClient struct {
	baseURL   string
	http      *http.Client
	timeouts  Timeouts
	telemetry *telemetry.Telemetry
	codec     *compressor.Codec
	log       *zap.SugaredLogger
}

// NewHTTPClient creates a client for the ML API at baseURL (no trailing slash).
func NewHTTPClient(baseURL string, options ...ClientOption) *HTTPClient {
	o := clientOptions{
		timeouts: DefaultTimeouts,
	}
	for _, option := range options {
		option(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient()
	}
	if o.telemetry == nil {
		o.telemetry, _ = telemetry.NewNoop()
	}

	return &HTTPClient{
		baseURL:   baseURL,
		http:      o.httpClient,
		timeouts:  o.timeouts,
		telemetry: o.telemetry,
		codec:     compressor.NewCodec(),
		log:       zap.S().With("module", "upstream.client"),
	}
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   2 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = 32
	transport.IdleConnTimeout = 90 * time.Second

	// Deadlines come from the per-operation context, not from the client.
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
	}
}

// BaseURL returns the ML API base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Health implements Client.
func (c *HTTPClient) Health(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, PathHealth, c.timeouts.Health)
}

// ModelInfo implements Client.
func (c *HTTPClient) ModelInfo(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, PathModelInfo, c.timeouts.ModelInfo)
}

// Predict implements Client. Any non-200 status yields a *StatusError.
func (c *HTTPClient) Predict(ctx context.Context, req *BatchRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode predict request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Predict)
	defer cancel()

	code, data, err := c.do(ctx, http.MethodPost, PathPredict, body)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &StatusError{Code: code, Body: string(data)}
	}
	return data, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(data), nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "Upstream "+method+" "+path)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		c.telemetry.RecordUpstream(ctx, time.Since(start), path, status)
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warnf("%s %s failed: %v", method, path, err)
		return 0, nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, errors.Wrapf(err, "read %s response", path)
	}

	enc, err := compressor.Parse(resp.Header.Get("Content-Encoding"))
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s response", path)
	}
	data, err = c.codec.DecompressLimit(enc, data, maxBodyBytes)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "decode %s response", path)
	}

	return resp.StatusCode, data, nil
}
