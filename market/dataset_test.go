package market

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const housingCSV = `id,square_footage,bedrooms,bathrooms,year_built,lot_size,distance_to_city_center,school_rating,price
1,1500,3,2,1990,5000,3.5,8.5,300000
2,800,1,1,1975,2000,1.2,6,150000
3,2200,4,3,2005,8000,10,9,500000
4,1200,3,1.5,1988,4000,5,7,250000
5,incomplete,row
`

func mustLoad(t *testing.T, data string) *Dataset {
	t.Helper()
	d, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	d := mustLoad(t, housingCSV)
	require.Equal(t, 4, d.Len())

	assert.Equal(t, Property{
		Price:                300000,
		SquareFootage:        1500,
		Bedrooms:             3,
		Bathrooms:            2,
		YearBuilt:            1990,
		LotSize:              5000,
		DistanceToCityCenter: 3.5,
		SchoolRating:         8.5,
	}, d.All()[0])
}

func TestLoadBadNumber(t *testing.T) {
	_, err := Load(strings.NewReader(housingCSV + "6,1000,two,1,1990,100,1,5,100000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 7")
	assert.Contains(t, err.Error(), "bedrooms")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "housing.csv")
	require.NoError(t, os.WriteFile(path, []byte(housingCSV), 0o600))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len())

	d, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	s := mustLoad(t, housingCSV).Summary()
	assert.Equal(t, Summary{
		AvgPrice:    300000,
		MinPrice:    150000,
		MaxPrice:    500000,
		MedianPrice: 275000,
		TotalCount:  4,
	}, s)
}

func TestSummaryOddCount(t *testing.T) {
	d := NewDataset([]Property{{Price: 3}, {Price: 1}, {Price: 2}})
	assert.Equal(t, 2.0, d.Summary().MedianPrice)
}

func TestSummaryEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, NewDataset(nil).Summary())
}

func TestAverageByBedrooms(t *testing.T) {
	d := mustLoad(t, housingCSV)

	assert.Equal(t, []GroupStats{
		{Label: "1", Count: 1, AveragePrice: 150000},
		{Label: "3", Count: 2, AveragePrice: 275000},
		{Label: "4", Count: 1, AveragePrice: 500000},
	}, d.AverageByBedrooms(Filter{}))

	minPrice := 200000.0
	assert.Equal(t, []GroupStats{
		{Label: "3", Count: 2, AveragePrice: 275000},
		{Label: "4", Count: 1, AveragePrice: 500000},
	}, d.AverageByBedrooms(Filter{MinPrice: &minPrice}))

	assert.Empty(t, NewDataset(nil).AverageByBedrooms(Filter{}))
}

func TestWriteCSV(t *testing.T) {
	d := mustLoad(t, housingCSV)

	var buf bytes.Buffer
	require.NoError(t, d.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "price,squareFootage,bedrooms,bathrooms,yearBuilt,lotSize,distanceToCityCenter,schoolRating", lines[0])
	assert.Equal(t, "300000,1500,3,2,1990,5000,3.5,8.5", lines[1])
	assert.Equal(t, "250000,1200,3,1.5,1988,4000,5,7", lines[4])
}
