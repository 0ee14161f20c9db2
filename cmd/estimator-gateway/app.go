package main

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gw "github.com/xizhibei/go-estimator-gateway"
	"github.com/xizhibei/go-estimator-gateway/config"
	"github.com/xizhibei/go-estimator-gateway/httpjson"
	"github.com/xizhibei/go-estimator-gateway/market"
	"github.com/xizhibei/go-estimator-gateway/predict"
	"github.com/xizhibei/go-estimator-gateway/telemetry"
	"github.com/xizhibei/go-estimator-gateway/upstream"
)

// handlerSlack is added to the longest ML API timeout to form the handler deadline.
const handlerSlack = time.Second

func newServer(cfg *config.Config, tel *telemetry.Telemetry, registry *prometheus.Registry) (*httpjson.Server, error) {
	data, err := market.LoadFile(cfg.HousingDataPath)
	if err != nil {
		return nil, err
	}

	client := upstream.NewHTTPClient(cfg.Upstream.BaseURL,
		upstream.WithTimeouts(upstream.Timeouts{
			Health:    cfg.Upstream.HealthTimeout,
			ModelInfo: cfg.Upstream.ModelInfoTimeout,
			Predict:   cfg.Upstream.PredictTimeout,
		}),
		upstream.WithTelemetry(tel),
	)

	validate := validator.New()
	gateway := predict.New(client, validate)
	analyzer := market.NewAnalyzer(data, gateway, validate)

	server := httpjson.NewServer(
		httpjson.WithAppName(cfg.AppName),
		httpjson.WithAllowOrigins(cfg.CORSAllowOrigins),
		httpjson.WithCompressMinBytes(cfg.CompressMinBytes),
		httpjson.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		httpjson.WithServerOptions(gw.WithLogResponse(cfg.LogResponse)),
	)
	server.SetTelemetry(tel)

	timeout := maxDuration(cfg.Upstream.HealthTimeout, cfg.Upstream.ModelInfoTimeout, cfg.Upstream.PredictTimeout) + handlerSlack
	gateway.Register(server, timeout)
	analyzer.Register(server, timeout)

	server.Route(http.MethodGet, "/health", predict.MethodHealth)
	server.Route(http.MethodGet, "/model-info", predict.MethodModelInfo)
	server.Route(http.MethodPost, "/predict", predict.MethodPredict)

	server.Route(http.MethodGet, "/market/health", market.MethodHealth)
	server.Route(http.MethodGet, "/market/summary", market.MethodSummary)
	server.Route(http.MethodGet, "/market/segments", market.MethodSegments)
	server.Route(http.MethodGet, "/market/distribution/bedrooms", market.MethodBedroomsDistribution)
	server.Route(http.MethodPost, "/market/what-if", market.MethodWhatIf)
	server.Route(http.MethodGet, "/market/export", market.MethodExport)

	responseTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "estimator_gateway",
		Name:      "response_seconds",
		Help:      "Handler response time in seconds.",
	}, []string{"method", "name", "status"})
	errorCount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estimator_gateway",
		Name:      "errors_total",
		Help:      "Handler responses carrying an error.",
	}, []string{"method", "name", "status", "message"})
	if err := registry.Register(responseTime); err != nil {
		return nil, err
	}
	if err := registry.Register(errorCount); err != nil {
		return nil, err
	}
	server.RegisterMetrics(responseTime, errorCount)

	return server, nil
}

func maxDuration(ds ...time.Duration) time.Duration {
	var m time.Duration
	for _, d := range ds {
		if d > m {
			m = d
		}
	}
	return m
}
