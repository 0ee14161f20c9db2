package predict

import (
	"bytes"
	"encoding/json"

	gw "github.com/xizhibei/go-estimator-gateway"
	"github.com/xizhibei/go-estimator-gateway/upstream"
)

// Kind tells a single-instance request from a batch request.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindBatch
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	default:
		return "unknown"
	}
}

const msgMissingShape = "Payload must contain 'features' (single) or 'instances' (batch)."

// Request is a prediction request resolved to its shape.
// Build it with ParseRequest, NewSingle or NewBatch.
type Request struct {
	kind Kind

	// single
	rawFeatures json.RawMessage
	features    map[string]interface{}

	// batch
	instances []json.RawMessage
}

// ParseRequest resolves a raw payload into a Request.
// "features" takes precedence when both keys are present.
func ParseRequest(body []byte) (*Request, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, gw.InvalidArgument("Invalid JSON payload: %v", err)
	}

	if raw, ok := payload["features"]; ok {
		return parseSingle(raw)
	}
	if raw, ok := payload["instances"]; ok {
		return parseBatch(raw)
	}
	return nil, gw.InvalidArgument(msgMissingShape)
}

func parseSingle(raw json.RawMessage) (*Request, error) {
	var features map[string]interface{}
	if isNull(raw) || json.Unmarshal(raw, &features) != nil {
		return nil, gw.InvalidArgument("'features' must be an object mapping feature names to numbers.")
	}
	return &Request{
		kind:        KindSingle,
		rawFeatures: raw,
		features:    features,
	}, nil
}

func parseBatch(raw json.RawMessage) (*Request, error) {
	var instances []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &instances) != nil {
		return nil, gw.InvalidArgument("'instances' must be a list of objects.")
	}
	for i, inst := range instances {
		if !isObject(inst) {
			return nil, gw.InvalidArgument("'instances[%d]' must be an object.", i)
		}
	}
	return &Request{
		kind:      KindBatch,
		instances: instances,
	}, nil
}

// NewSingle builds a single-instance request from typed features.
func NewSingle(features map[string]float64) (*Request, error) {
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, gw.InvalidArgument("Invalid features: %v", err)
	}
	return parseSingle(raw)
}

// NewBatch builds a batch request from typed instances.
func NewBatch(instances []map[string]float64) (*Request, error) {
	raws := make([]json.RawMessage, 0, len(instances))
	for _, inst := range instances {
		raw, err := json.Marshal(inst)
		if err != nil {
			return nil, gw.InvalidArgument("Invalid instance: %v", err)
		}
		raws = append(raws, raw)
	}
	return &Request{kind: KindBatch, instances: raws}, nil
}

// Kind returns the request shape.
func (r *Request) Kind() Kind {
	return r.kind
}

// Features returns the decoded single-request features, nil for a batch.
func (r *Request) Features() map[string]interface{} {
	return r.features
}

// Len returns the number of instances the request forwards.
func (r *Request) Len() int {
	if r.kind == KindSingle {
		return 1
	}
	return len(r.instances)
}

// Normalize converts the request to the ML API's batch shape.
// A single request becomes a one-element batch; a batch passes through.
func (r *Request) Normalize() *upstream.BatchRequest {
	if r.kind == KindSingle {
		return &upstream.BatchRequest{Instances: []json.RawMessage{r.rawFeatures}}
	}
	instances := r.instances
	if instances == nil {
		instances = []json.RawMessage{}
	}
	return &upstream.BatchRequest{Instances: instances}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
