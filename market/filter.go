package market

import (
	"strconv"
	"strings"

	gw "github.com/xizhibei/go-estimator-gateway"
)

// Filter selects properties by inclusive bounds. A nil bound is unbounded.
type Filter struct {
	MinPrice        *float64
	MaxPrice        *float64
	MinBedrooms     *int
	MaxBedrooms     *int
	MinSchoolRating *float64
	MaxSchoolRating *float64
}

// Match reports whether p lies within every set bound.
func (f Filter) Match(p Property) bool {
	switch {
	case f.MinPrice != nil && p.Price < *f.MinPrice:
		return false
	case f.MaxPrice != nil && p.Price > *f.MaxPrice:
		return false
	case f.MinBedrooms != nil && p.Bedrooms < *f.MinBedrooms:
		return false
	case f.MaxBedrooms != nil && p.Bedrooms > *f.MaxBedrooms:
		return false
	case f.MinSchoolRating != nil && p.SchoolRating < *f.MinSchoolRating:
		return false
	case f.MaxSchoolRating != nil && p.SchoolRating > *f.MaxSchoolRating:
		return false
	}
	return true
}

// ParseFilter reads the filter bounds through query, which returns "" for absent keys.
func ParseFilter(query func(key string) string) (Filter, error) {
	var (
		f   Filter
		err error
	)

	floatParam := func(key string, dst **float64) {
		raw := strings.TrimSpace(query(key))
		if raw == "" || err != nil {
			return
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			err = gw.InvalidArgument("Query parameter '%s' must be a number (got %q).", key, raw)
			return
		}
		*dst = &v
	}
	intParam := func(key string, dst **int) {
		raw := strings.TrimSpace(query(key))
		if raw == "" || err != nil {
			return
		}
		v, perr := strconv.Atoi(raw)
		if perr != nil {
			err = gw.InvalidArgument("Query parameter '%s' must be an integer (got %q).", key, raw)
			return
		}
		*dst = &v
	}

	floatParam("minPrice", &f.MinPrice)
	floatParam("maxPrice", &f.MaxPrice)
	intParam("minBedrooms", &f.MinBedrooms)
	intParam("maxBedrooms", &f.MaxBedrooms)
	floatParam("minSchoolRating", &f.MinSchoolRating)
	floatParam("maxSchoolRating", &f.MaxSchoolRating)

	return f, err
}
