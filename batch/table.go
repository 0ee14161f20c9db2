package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xizhibei/go-estimator-gateway/upstream"
)

// PredictionColumn is appended to the output table.
const PredictionColumn = "predicted_price"

// Table holds rows projected onto the feature columns.
type Table struct {
	Features []string
	Rows     [][]float64
}

// ParseFeatures splits a comma separated feature list.
func ParseFeatures(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ResolveFeatures returns explicit when set, otherwise the feature list the model reports.
func ResolveFeatures(ctx context.Context, client upstream.Client, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	body, err := client.ModelInfo(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch model info")
	}

	var info upstream.ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(err, "parse model info")
	}
	if len(info.Features) == 0 {
		return nil, errors.New("model info lists no features; pass them explicitly")
	}
	return info.Features, nil
}

// ReadTable reads a CSV with a header row and projects each row onto features, in order.
func ReadTable(r io.Reader, features []string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("input is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	cols := make([]int, len(features))
	for i, f := range features {
		col, ok := index[f]
		if !ok {
			return nil, errors.Newf("missing column %q", f)
		}
		cols[i] = col
	}

	t := &Table{Features: features}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}

		row := make([]float64, len(cols))
		for i, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, errors.Newf("line %d column %q: %q is not a number", line, features[i], record[col])
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Instance returns row i as a feature map.
func (t *Table) Instance(i int) map[string]float64 {
	inst := make(map[string]float64, len(t.Features))
	for j, f := range t.Features {
		inst[f] = t.Rows[i][j]
	}
	return inst
}

// WriteTable writes the feature columns plus predictions, one row per input row.
func WriteTable(w io.Writer, t *Table, predictions []float64) error {
	if len(predictions) != len(t.Rows) {
		return errors.Newf("%d predictions for %d rows", len(predictions), len(t.Rows))
	}

	writer := csv.NewWriter(w)
	header := append(append([]string{}, t.Features...), PredictionColumn)
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	record := make([]string, len(header))
	for i, row := range t.Rows {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		record[len(row)] = strconv.FormatFloat(predictions[i], 'f', -1, 64)
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
	}

	writer.Flush()
	return errors.Wrap(writer.Error(), "flush output")
}
