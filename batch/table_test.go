package batch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatures(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseFeatures(" a, b,,c "))
	assert.Nil(t, ParseFeatures(""))
}

func TestReadTableProjectsColumns(t *testing.T) {
	in := "id,bedrooms,square_footage,price\n1,3,1500,300000\n2,2,900,180000\n"
	table, err := ReadTable(strings.NewReader(in), []string{"square_footage", "bedrooms"})
	require.NoError(t, err)

	assert.Equal(t, []string{"square_footage", "bedrooms"}, table.Features)
	assert.Equal(t, [][]float64{{1500, 3}, {900, 2}}, table.Rows)
	assert.Equal(t, map[string]float64{"square_footage": 900, "bedrooms": 2}, table.Instance(1))
}

func TestReadTableErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		message string
	}{
		{"empty", "", "input is empty"},
		{"missing column", "a,b\n1,2\n", `missing column "c"`},
		{"not a number", "a,c\n1,2\n3,x\n", `line 3 column "c": "x" is not a number`},
		{"ragged row", "a,c\n1,2\n3\n", "read line 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.in), []string{"a", "c"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestWriteTable(t *testing.T) {
	table := &Table{Features: []string{"x"}, Rows: [][]float64{{1.5}, {2}}}

	var out bytes.Buffer
	require.NoError(t, WriteTable(&out, table, []float64{10.25, 20}))
	assert.Equal(t, "x,predicted_price\n1.5,10.25\n2,20\n", out.String())

	assert.Error(t, WriteTable(&out, table, []float64{1}))
}
