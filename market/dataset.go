// Package market serves read-only analytics over the housing dataset and
// prices hypothetical properties through the prediction gateway.
package market

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Columns of the housing dataset, in file order.
var datasetColumns = []string{
	"id", "square_footage", "bedrooms", "bathrooms", "year_built",
	"lot_size", "distance_to_city_center", "school_rating", "price",
}

// Property is one row of the housing dataset.
type Property struct {
	Price                float64 `json:"price"`
	SquareFootage        float64 `json:"squareFootage"`
	Bedrooms             int     `json:"bedrooms"`
	Bathrooms            float64 `json:"bathrooms"`
	YearBuilt            int     `json:"yearBuilt"`
	LotSize              float64 `json:"lotSize"`
	DistanceToCityCenter float64 `json:"distanceToCityCenter"`
	SchoolRating         float64 `json:"schoolRating"`
}

// Summary holds aggregate price statistics.
type Summary struct {
	AvgPrice    float64 `json:"avgPrice"`
	MinPrice    float64 `json:"minPrice"`
	MaxPrice    float64 `json:"maxPrice"`
	MedianPrice float64 `json:"medianPrice"`
	TotalCount  int     `json:"totalCount"`
}

// GroupStats is the price statistic of one group of properties.
type GroupStats struct {
	Label        string  `json:"label"`
	Count        int     `json:"count"`
	AveragePrice float64 `json:"averagePrice"`
}

// Dataset is an immutable set of properties, safe for concurrent reads.
type Dataset struct {
	properties []Property
	summary    Summary
}

// NewDataset builds a Dataset over properties.
func NewDataset(properties []Property) *Dataset {
	d := &Dataset{properties: properties}
	d.summary = summarize(properties)
	return d
}

// LoadFile reads the dataset at path. An empty path yields an empty dataset.
func LoadFile(path string) (*Dataset, error) {
	if path == "" {
		return NewDataset(nil), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open housing data %s", path)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a housing CSV. The header line is skipped, as are rows with
// fewer columns than expected. Unparsable numbers fail the load.
func Load(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var properties []Property
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read housing data")
		}
		if line == 1 || len(record) < len(datasetColumns) {
			continue
		}

		p, err := parseProperty(record)
		if err != nil {
			return nil, errors.Wrapf(err, "housing data line %d", line)
		}
		properties = append(properties, p)
	}

	return NewDataset(properties), nil
}

func parseProperty(record []string) (Property, error) {
	var (
		p    Property
		errs error
	)
	float := func(i int) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Newf("column %s: %v", datasetColumns[i], err))
		}
		return v
	}
	integer := func(i int) int {
		v, err := strconv.Atoi(strings.TrimSpace(record[i]))
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Newf("column %s: %v", datasetColumns[i], err))
		}
		return v
	}

	p.SquareFootage = float(1)
	p.Bedrooms = integer(2)
	p.Bathrooms = float(3)
	p.YearBuilt = integer(4)
	p.LotSize = float(5)
	p.DistanceToCityCenter = float(6)
	p.SchoolRating = float(7)
	p.Price = float(8)
	return p, errs
}

// Len returns the number of properties.
func (d *Dataset) Len() int {
	return len(d.properties)
}

// All returns every property in file order. Callers must not modify it.
func (d *Dataset) All() []Property {
	return d.properties
}

// Summary returns the aggregate statistics of the whole dataset.
func (d *Dataset) Summary() Summary {
	return d.summary
}

func summarize(properties []Property) Summary {
	if len(properties) == 0 {
		return Summary{}
	}

	prices := make([]float64, len(properties))
	var sum float64
	for i, p := range properties {
		prices[i] = p.Price
		sum += p.Price
	}
	sort.Float64s(prices)

	n := len(prices)
	median := prices[n/2]
	if n%2 == 0 {
		median = (prices[n/2-1] + prices[n/2]) / 2
	}

	return Summary{
		AvgPrice:    sum / float64(n),
		MinPrice:    prices[0],
		MaxPrice:    prices[n-1],
		MedianPrice: median,
		TotalCount:  n,
	}
}

// Filter returns the properties matching f, in file order.
func (d *Dataset) Filter(f Filter) []Property {
	matched := make([]Property, 0)
	for _, p := range d.properties {
		if f.Match(p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// AverageByBedrooms groups the properties matching f by bedroom count, ascending.
func (d *Dataset) AverageByBedrooms(f Filter) []GroupStats {
	type acc struct {
		count int
		sum   float64
	}
	groups := map[int]*acc{}
	for _, p := range d.Filter(f) {
		g, ok := groups[p.Bedrooms]
		if !ok {
			g = &acc{}
			groups[p.Bedrooms] = g
		}
		g.count++
		g.sum += p.Price
	}

	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	stats := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		stats = append(stats, GroupStats{
			Label:        strconv.Itoa(k),
			Count:        g.count,
			AveragePrice: g.sum / float64(g.count),
		})
	}
	return stats
}

// WriteCSV exports every property with camelCase headers.
func (d *Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"price", "squareFootage", "bedrooms", "bathrooms", "yearBuilt",
		"lotSize", "distanceToCityCenter", "schoolRating",
	}); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	for _, p := range d.properties {
		if err := writer.Write([]string{
			formatFloat(p.Price),
			formatFloat(p.SquareFootage),
			strconv.Itoa(p.Bedrooms),
			formatFloat(p.Bathrooms),
			strconv.Itoa(p.YearBuilt),
			formatFloat(p.LotSize),
			formatFloat(p.DistanceToCityCenter),
			formatFloat(p.SchoolRating),
		}); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}

	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
