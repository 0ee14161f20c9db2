package market

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	gw "github.com/xizhibei/go-estimator-gateway"
	"go.uber.org/zap"
)

// WhatIfRequest describes a hypothetical property.
type WhatIfRequest struct {
	SquareFootage        float64 `json:"squareFootage" validate:"gte=100"`
	Bedrooms             int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms            float64 `json:"bathrooms" validate:"gte=0"`
	YearBuilt            int     `json:"yearBuilt" validate:"gte=1800"`
	LotSize              float64 `json:"lotSize" validate:"gte=0"`
	DistanceToCityCenter float64 `json:"distanceToCityCenter" validate:"gte=0"`
	SchoolRating         float64 `json:"schoolRating" validate:"gte=0,lte=10"`
}

var whatIfMessages = map[string]string{
	"SquareFootage":        "squareFootage must be >= 100",
	"Bedrooms":             "bedrooms must be >= 0",
	"Bathrooms":            "bathrooms must be >= 0",
	"YearBuilt":            "yearBuilt must be >= 1800",
	"LotSize":              "lotSize must be >= 0",
	"DistanceToCityCenter": "distanceToCityCenter must be >= 0",
	"SchoolRating":         "schoolRating must be between 0 and 10",
}

// Features converts the request to the model's snake_case feature names.
func (r *WhatIfRequest) Features() map[string]float64 {
	return map[string]float64{
		"square_footage":          r.SquareFootage,
		"bedrooms":                float64(r.Bedrooms),
		"bathrooms":               r.Bathrooms,
		"year_built":              float64(r.YearBuilt),
		"lot_size":                r.LotSize,
		"distance_to_city_center": r.DistanceToCityCenter,
		"school_rating":           r.SchoolRating,
	}
}

// WhatIfResponse compares a predicted price with the market average.
type WhatIfResponse struct {
	PredictedPrice        float64 `json:"predictedPrice"`
	MarketAverage         float64 `json:"marketAverage"`
	DifferenceFromAverage float64 `json:"differenceFromAverage"`
}

//go:generate mockgen -source=whatif.go -destination=mock/mock_market.go

// Predictor prices a single instance.
type Predictor interface {
	PredictSingle(ctx context.Context, features map[string]float64) (float64, error)
}

// Analyzer answers market questions over a Dataset.
type Analyzer struct {
	data      *Dataset
	predictor Predictor
	validate  *validator.Validate
	log       *zap.SugaredLogger
}

// NewAnalyzer creates an Analyzer over data that prices what-if requests with predictor.
func NewAnalyzer(data *Dataset, predictor Predictor, validate *validator.Validate) *Analyzer {
	return &Analyzer{
		data:      data,
		predictor: predictor,
		validate:  validate,
		log:       zap.S().With("module", "market.analyzer"),
	}
}

// Validate checks req against the what-if constraints.
func (a *Analyzer) Validate(req *WhatIfRequest) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return gw.InvalidArgument("%v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := whatIfMessages[fe.StructField()]
		if !ok {
			msg = fe.Error()
		}
		msgs = append(msgs, msg)
	}
	return gw.InvalidArgument("%s", strings.Join(msgs, "; "))
}

// WhatIf validates req, prices it and compares the price with the dataset average.
func (a *Analyzer) WhatIf(ctx context.Context, req *WhatIfRequest) (*WhatIfResponse, error) {
	if err := a.Validate(req); err != nil {
		return nil, err
	}

	price, err := a.predictor.PredictSingle(ctx, req.Features())
	if err != nil {
		return nil, err
	}

	avg := a.data.Summary().AvgPrice
	a.log.Debugf("What-if predicted %.2f against average %.2f", price, avg)
	return &WhatIfResponse{
		PredictedPrice:        price,
		MarketAverage:         avg,
		DifferenceFromAverage: price - avg,
	}, nil
}
