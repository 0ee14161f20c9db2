package predict

import (
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	gw "github.com/xizhibei/go-estimator-gateway"
)

const (
	// MaxFeatureValue is the exclusive upper bound for a single-request feature.
	MaxFeatureValue = 1e7

	featureRule = "gt=0,lt=10000000"
)

// ValidateFeatures checks that every feature is present, numeric and in (0, MaxFeatureValue).
// Fields are checked in name order, so the first offending field is the one reported.
func ValidateFeatures(validate *validator.Validate, features map[string]interface{}) error {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch v := features[name].(type) {
		case nil:
			return gw.InvalidArgument("Field '%s' is required.", name)
		case float64:
			if err := validate.Var(v, featureRule); err != nil {
				return gw.InvalidArgument("Field '%s' must be greater than 0 and less than %s (got %s).",
					name, formatNumber(MaxFeatureValue), formatNumber(v))
			}
		default:
			return gw.InvalidArgument("Field '%s' must be numeric.", name)
		}
	}
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
