// Package predict translates UI prediction requests into ML API batch calls
// and maps every upstream failure to a gateway error.
package predict

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	gw "github.com/xizhibei/go-estimator-gateway"
	"github.com/xizhibei/go-estimator-gateway/upstream"
	"go.uber.org/zap"
)

// HealthResponse is returned by Gateway.Health.
type HealthResponse struct {
	Status string          `json:"status"`
	MLAPI  json.RawMessage `json:"ml_api"`
}

// SingleResponse is the unwrapped answer to a single request.
type SingleResponse struct {
	Prediction float64 `json:"prediction"`
}

// Response is the answer to a prediction request, shaped like the request.
type Response struct {
	kind        Kind
	prediction  float64
	predictions []float64
	raw         json.RawMessage
}

// Kind returns the shape of the request that produced r.
func (r *Response) Kind() Kind {
	return r.kind
}

// Prediction returns the unwrapped value of a single response.
func (r *Response) Prediction() float64 {
	return r.prediction
}

// Predictions returns every prediction in instance order.
func (r *Response) Predictions() []float64 {
	return r.predictions
}

// MarshalJSON renders {"prediction": x} for single requests and the ML API body for batches.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.kind == KindSingle {
		return json.Marshal(SingleResponse{Prediction: r.prediction})
	}
	return r.raw, nil
}

// Gateway is the prediction gateway. It holds no per-request state.
type Gateway struct {
	client   upstream.Client
	validate *validator.Validate
	log      *zap.SugaredLogger
}

// New creates a Gateway forwarding to client.
func New(client upstream.Client, validate *validator.Validate) *Gateway {
	return &Gateway{
		client:   client,
		validate: validate,
		log:      zap.S().With("module", "predict.gateway"),
	}
}

// Health reports the gateway as ok together with the ML API's own health body.
func (g *Gateway) Health(ctx context.Context) (*HealthResponse, error) {
	body, err := g.client.Health(ctx)
	if err != nil {
		return nil, gw.ServiceUnavailable(err, "ML API unavailable")
	}
	return &HealthResponse{Status: "ok", MLAPI: body}, nil
}

// ModelInfo returns the ML API's model metadata verbatim.
func (g *Gateway) ModelInfo(ctx context.Context) (json.RawMessage, error) {
	body, err := g.client.ModelInfo(ctx)
	if err != nil {
		return nil, gw.BadGateway(err, "Error contacting ML API")
	}
	return body, nil
}

// Predict validates req, forwards it as a batch and shapes the answer like req.
// Only single requests are range checked; batches go upstream untouched.
func (g *Gateway) Predict(ctx context.Context, req *Request) (*Response, error) {
	if req.Kind() == KindSingle {
		if err := ValidateFeatures(g.validate, req.Features()); err != nil {
			return nil, err
		}
	}
	return g.forward(ctx, req)
}

// PredictSingle predicts one instance from features built by the caller.
// Caller-side constraints apply instead of the (0, MaxFeatureValue) range.
func (g *Gateway) PredictSingle(ctx context.Context, features map[string]float64) (float64, error) {
	req, err := NewSingle(features)
	if err != nil {
		return 0, err
	}
	res, err := g.forward(ctx, req)
	if err != nil {
		return 0, err
	}
	return res.Prediction(), nil
}

type upstreamPredictions struct {
	Predictions []*float64 `json:"predictions"`
}

func (g *Gateway) forward(ctx context.Context, req *Request) (*Response, error) {
	body, err := g.client.Predict(ctx, req.Normalize())
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			return nil, gw.BadGateway(err, "ML API rejected the request")
		}
		return nil, gw.BadGateway(err, "Cannot reach ML API")
	}

	predictions, err := parsePredictions(body)
	if err != nil {
		g.log.Warnf("Invalid response from ML API: %s", truncate(body, 256))
		return nil, gw.Internal(err, "Invalid response from ML API")
	}

	if req.Kind() == KindSingle {
		if len(predictions) == 0 {
			return nil, gw.Internal(nil, "ML API returned no predictions.")
		}
		return &Response{
			kind:        KindSingle,
			prediction:  predictions[0],
			predictions: predictions,
		}, nil
	}

	if len(predictions) != req.Len() {
		return nil, gw.Internal(nil, "ML API returned %d predictions for %d instances.", len(predictions), req.Len())
	}
	return &Response{
		kind:        KindBatch,
		predictions: predictions,
		raw:         json.RawMessage(body),
	}, nil
}

func parsePredictions(body []byte) ([]float64, error) {
	var parsed upstreamPredictions
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Predictions == nil {
		return nil, errors.New("missing predictions")
	}

	predictions := make([]float64, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		if p == nil {
			return nil, errors.Newf("prediction %d is null", i)
		}
		predictions[i] = *p
	}
	return predictions, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
