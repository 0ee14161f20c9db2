package predict

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gw "github.com/xizhibei/go-estimator-gateway"
)

func TestParseRequestSingle(t *testing.T) {
	req, err := ParseRequest([]byte(`{"features":{"square_footage":1500,"bedrooms":3}}`))
	require.NoError(t, err)

	assert.Equal(t, KindSingle, req.Kind())
	assert.Equal(t, 1, req.Len())
	assert.Equal(t, map[string]interface{}{"square_footage": 1500.0, "bedrooms": 3.0}, req.Features())

	batch := req.Normalize()
	require.Len(t, batch.Instances, 1)
	assert.JSONEq(t, `{"square_footage":1500,"bedrooms":3}`, string(batch.Instances[0]))
}

func TestParseRequestBatch(t *testing.T) {
	req, err := ParseRequest([]byte(`{"instances":[{"x":1},{"x":2}]}`))
	require.NoError(t, err)

	assert.Equal(t, KindBatch, req.Kind())
	assert.Equal(t, 2, req.Len())
	assert.Nil(t, req.Features())

	out, err := json.Marshal(req.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"instances":[{"x":1},{"x":2}]}`, string(out))
}

func TestParseRequestFeaturesWinOverInstances(t *testing.T) {
	req, err := ParseRequest([]byte(`{"instances":[{"x":1}],"features":{"x":5}}`))
	require.NoError(t, err)
	assert.Equal(t, KindSingle, req.Kind())
}

func TestParseRequestEmptyBatch(t *testing.T) {
	req, err := ParseRequest([]byte(`{"instances":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, req.Len())

	out, err := json.Marshal(req.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"instances":[]}`, string(out))
}

func TestParseRequestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"neither key", `{"foo":1}`, msgMissingShape},
		{"empty object", `{}`, msgMissingShape},
		{"not json", `features=1`, "Invalid JSON payload"},
		{"top-level array", `[{"x":1}]`, "Invalid JSON payload"},
		{"null features", `{"features":null}`, "'features' must be an object"},
		{"array features", `{"features":[1,2]}`, "'features' must be an object"},
		{"object instances", `{"instances":{"x":1}}`, "'instances' must be a list"},
		{"null instances", `{"instances":null}`, "'instances' must be a list"},
		{"scalar instance", `{"instances":[{"x":1},3]}`, "'instances[1]' must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, gw.ErrInvalidArgument))
			assert.Equal(t, gw.StatusClientError, gw.StatusOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewSingleAndBatch(t *testing.T) {
	single, err := NewSingle(map[string]float64{"bedrooms": 3})
	require.NoError(t, err)
	assert.Equal(t, KindSingle, single.Kind())
	assert.JSONEq(t, `{"bedrooms":3}`, string(single.Normalize().Instances[0]))

	batch, err := NewBatch([]map[string]float64{{"x": 1}, {"x": 2}, {"x": 3}})
	require.NoError(t, err)
	assert.Equal(t, KindBatch, batch.Kind())
	assert.Equal(t, 3, batch.Len())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "single", KindSingle.String())
	assert.Equal(t, "batch", KindBatch.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
