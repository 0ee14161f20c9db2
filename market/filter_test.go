package market

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gw "github.com/xizhibei/go-estimator-gateway"
)

func queryOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(queryOf(map[string]string{
		"minPrice":        "100000",
		"maxBedrooms":     " 3 ",
		"maxSchoolRating": "8.5",
	}))
	require.NoError(t, err)

	require.NotNil(t, f.MinPrice)
	assert.Equal(t, 100000.0, *f.MinPrice)
	require.NotNil(t, f.MaxBedrooms)
	assert.Equal(t, 3, *f.MaxBedrooms)
	require.NotNil(t, f.MaxSchoolRating)
	assert.Equal(t, 8.5, *f.MaxSchoolRating)
	assert.Nil(t, f.MaxPrice)
	assert.Nil(t, f.MinBedrooms)
	assert.Nil(t, f.MinSchoolRating)
}

func TestParseFilterInvalid(t *testing.T) {
	tests := []struct {
		key, value, message string
	}{
		{"minPrice", "cheap", "'minPrice' must be a number"},
		{"minBedrooms", "2.5", "'minBedrooms' must be an integer"},
		{"maxSchoolRating", "ten", "'maxSchoolRating' must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := ParseFilter(queryOf(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, gw.ErrInvalidArgument))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFilterInclusiveBounds(t *testing.T) {
	d := mustLoad(t, housingCSV)

	f, err := ParseFilter(queryOf(map[string]string{
		"minPrice":    "250000",
		"maxPrice":    "300000",
		"minBedrooms": "3",
		"maxBedrooms": "3",
	}))
	require.NoError(t, err)

	got := d.Filter(f)
	require.Len(t, got, 2)
	assert.Equal(t, 300000.0, got[0].Price)
	assert.Equal(t, 250000.0, got[1].Price)
}

func TestFilterSchoolRating(t *testing.T) {
	d := mustLoad(t, housingCSV)

	f, err := ParseFilter(queryOf(map[string]string{"minSchoolRating": "8.5"}))
	require.NoError(t, err)
	assert.Len(t, d.Filter(f), 2)

	f, err = ParseFilter(queryOf(map[string]string{"minSchoolRating": "9.5"}))
	require.NoError(t, err)
	got := d.Filter(f)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterUnbounded(t *testing.T) {
	d := mustLoad(t, strings.TrimSpace(housingCSV))
	assert.Len(t, d.Filter(Filter{}), d.Len())
}
