package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"
	"github.com/xizhibei/go-estimator-gateway/config"
	"github.com/xizhibei/go-estimator-gateway/httpjson"
	"github.com/xizhibei/go-estimator-gateway/telemetry"
)

const housingCSV = `id,square_footage,bedrooms,bathrooms,year_built,lot_size,distance_to_city_center,school_rating,price
1,1500,3,2,1990,5000,3.5,8.5,300000
2,800,1,1,1975,2000,1.2,6,100000
`

type AppTestSuite struct {
	suite.Suite
	mlAPI     *httptest.Server
	mlHandler http.HandlerFunc
	server    *httpjson.Server
}

func (suite *AppTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *AppTestSuite) SetupTest() {
	suite.mlHandler = nil
	suite.mlAPI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.mlHandler(w, r)
	}))

	path := filepath.Join(suite.T().TempDir(), "housing.csv")
	suite.Require().NoError(os.WriteFile(path, []byte(housingCSV), 0o600))

	v := viper.New()
	v.Set(config.MLAPIBaseURL, suite.mlAPI.URL)
	v.Set(config.PredictTimeoutMs, 200)
	v.Set(config.HousingDataPath, path)
	cfg, err := config.FromViper(v)
	suite.Require().NoError(err)

	tel, err := telemetry.NewNoop()
	suite.Require().NoError(err)

	suite.server, err = newServer(cfg, tel, prometheus.NewRegistry())
	suite.Require().NoError(err)
}

func (suite *AppTestSuite) TearDownTest() {
	suite.mlAPI.Close()
}

func (suite *AppTestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.server.Handler().ServeHTTP(w, req)
	return w
}

func (suite *AppTestSuite) detail(w *httptest.ResponseRecorder) string {
	var body struct {
		Detail string `json:"detail"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func (suite *AppTestSuite) TestPredictSingle() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("/predict", r.URL.Path)
		var req map[string][]map[string]float64
		suite.NoError(json.NewDecoder(r.Body).Decode(&req))
		suite.Equal([]map[string]float64{{"square_footage": 1500, "bedrooms": 3}}, req["instances"])
		_, _ = w.Write([]byte(`{"predictions":[542123.45]}`))
	}

	w := suite.do(http.MethodPost, "/predict", `{"features":{"square_footage":1500,"bedrooms":3}}`)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"prediction":542123.45}`, w.Body.String())
}

func (suite *AppTestSuite) TestPredictBatch() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[10.0,20.0]}`))
	}

	w := suite.do(http.MethodPost, "/predict", `{"instances":[{"x":1},{"x":2}]}`)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"predictions":[10.0,20.0]}`, w.Body.String())
}

func (suite *AppTestSuite) TestPredictMissingShape() {
	w := suite.do(http.MethodPost, "/predict", `{"foo":1}`)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Payload must contain 'features' (single) or 'instances' (batch).", suite.detail(w))
}

func (suite *AppTestSuite) TestPredictOutOfRange() {
	w := suite.do(http.MethodPost, "/predict", `{"features":{"bedrooms":-1}}`)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(suite.detail(w), "'bedrooms'")
}

func (suite *AppTestSuite) TestPredictUpstreamTimeout() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}

	start := time.Now()
	w := suite.do(http.MethodPost, "/predict", `{"features":{"x":1}}`)
	suite.Equal(http.StatusBadGateway, w.Code)
	suite.Less(time.Since(start), time.Second)
}

func (suite *AppTestSuite) TestHealthUnavailable() {
	suite.mlAPI.Close()

	w := suite.do(http.MethodGet, "/health", "")
	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Contains(suite.detail(w), "ML API unavailable")

	w = suite.do(http.MethodPost, "/predict", `{"features":{"x":1}}`)
	suite.Equal(http.StatusBadGateway, w.Code)
}

func (suite *AppTestSuite) TestHealthAndModelInfo() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		case "/model-info":
			_, _ = w.Write([]byte(`{"model":"rf","features":["a"]}`))
		}
	}

	w := suite.do(http.MethodGet, "/health", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"status":"ok","ml_api":{"status":"healthy"}}`, w.Body.String())

	w = suite.do(http.MethodGet, "/model-info", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"model":"rf","features":["a"]}`, w.Body.String())
}

func (suite *AppTestSuite) TestMarket() {
	w := suite.do(http.MethodGet, "/market/health", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("ok", w.Body.String())

	w = suite.do(http.MethodGet, "/market/summary", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"avgPrice":200000,"minPrice":100000,"maxPrice":300000,"medianPrice":200000,"totalCount":2}`, w.Body.String())

	w = suite.do(http.MethodGet, "/market/segments?minBedrooms=2", "")
	suite.Equal(http.StatusOK, w.Code)
	var segments []map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &segments))
	suite.Len(segments, 1)

	w = suite.do(http.MethodGet, "/market/distribution/bedrooms?minPrice=nope", "")
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/market/export?type=csv", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("attachment; filename=market_data.csv", w.Header().Get("Content-Disposition"))

	w = suite.do(http.MethodGet, "/market/export?type=xml", "")
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Unsupported export format: xml", suite.detail(w))
}

func (suite *AppTestSuite) TestWhatIf() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]map[string]float64
		suite.NoError(json.NewDecoder(r.Body).Decode(&req))
		suite.Equal(2000.0, req["instances"][0]["year_built"])
		_, _ = w.Write([]byte(`{"predictions":[250000]}`))
	}

	w := suite.do(http.MethodPost, "/market/what-if",
		`{"squareFootage":1800,"bedrooms":3,"bathrooms":2,"yearBuilt":2000,"lotSize":5000,"distanceToCityCenter":4,"schoolRating":8}`)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"predictedPrice":250000,"marketAverage":200000,"differenceFromAverage":50000}`, w.Body.String())

	w = suite.do(http.MethodPost, "/market/what-if", `{"squareFootage":50,"yearBuilt":2000}`)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(suite.detail(w), "squareFootage must be >= 100")
}

func (suite *AppTestSuite) TestWhatIfZeroValues() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]map[string]float64
		suite.NoError(json.NewDecoder(r.Body).Decode(&req))
		suite.Equal(0.0, req["instances"][0]["bedrooms"])
		suite.Equal(0.0, req["instances"][0]["school_rating"])
		_, _ = w.Write([]byte(`{"predictions":[150000]}`))
	}

	w := suite.do(http.MethodPost, "/market/what-if",
		`{"squareFootage":450,"bedrooms":0,"bathrooms":1,"yearBuilt":2015,"lotSize":0,"distanceToCityCenter":0,"schoolRating":0}`)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"predictedPrice":150000,"marketAverage":200000,"differenceFromAverage":-50000}`, w.Body.String())
}

func (suite *AppTestSuite) TestPredictNullFromUpstream() {
	suite.mlHandler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[null]}`))
	}

	w := suite.do(http.MethodPost, "/predict", `{"features":{"x":1}}`)
	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.Contains(suite.detail(w), "Invalid response from ML API")
}

func (suite *AppTestSuite) TestMetricsEndpoint() {
	suite.do(http.MethodPost, "/predict", `{"foo":1}`)

	w := suite.do(http.MethodGet, "/metrics", "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `estimator_gateway_errors_total{message="invalid argument",method="predict"`)
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}
