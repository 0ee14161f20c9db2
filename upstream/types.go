package upstream

import (
	"encoding/json"
	"fmt"
)

// BatchRequest is the only request shape the ML API accepts on /predict.
type BatchRequest struct {
	Instances []json.RawMessage `json:"instances"`
}

// BatchResponse is the ML API's /predict answer: one prediction per instance, in order.
type BatchResponse struct {
	Predictions []float64 `json:"predictions"`
}

// ModelInfo is the part of the /model-info answer the gateway reads.
// The full body is forwarded verbatim.
type ModelInfo struct {
	Features []string `json:"features"`
}

// StatusError is returned when the ML API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ML API returned status %d: %s", e.Code, e.Body)
}
