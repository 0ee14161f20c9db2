// Package httpjson serves gateway handlers as a JSON HTTP API on gin.
package httpjson

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gw "github.com/xizhibei/go-estimator-gateway"
	"github.com/xizhibei/go-estimator-gateway/compressor"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

var _ gw.Transport = (*Server)(nil)

// Server is an HTTP transport for a gateway Server.
type Server struct {
	*gw.Server
	engine     *gin.Engine
	httpServer *http.Server
	codec      *compressor.Codec
	options    options
	log        *zap.SugaredLogger
}

type options struct {
	appName          string
	allowOrigins     []string
	compressMinBytes int
	metricsHandler   http.Handler
	serverOptions    []gw.ServerOption
}

// Option configures a Server.
type Option func(*options)

// WithAppName names the service in inbound spans.
func WithAppName(name string) Option {
	return func(o *options) {
		o.appName = name
	}
}

// WithAllowOrigins sets the CORS origins.
func WithAllowOrigins(origins []string) Option {
	return func(o *options) {
		o.allowOrigins = origins
	}
}

// WithCompressMinBytes compresses bodies of at least n bytes. n <= 0 disables compression.
func WithCompressMinBytes(n int) Option {
	return func(o *options) {
		o.compressMinBytes = n
	}
}

// WithMetricsHandler serves h on GET /metrics instead of the default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) {
		o.metricsHandler = h
	}
}

// WithServerOptions passes options to the underlying gateway Server.
func WithServerOptions(opts ...gw.ServerOption) Option {
	return func(o *options) {
		o.serverOptions = append(o.serverOptions, opts...)
	}
}

// NewServer creates an HTTP transport with its middleware chain installed.
func NewServer(opts ...Option) *Server {
	o := options{
		appName:          "estimator-gateway",
		allowOrigins:     []string{"*"},
		compressMinBytes: 1024,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metricsHandler == nil {
		o.metricsHandler = promhttp.Handler()
	}

	s := &Server{
		Server:  gw.NewServer(append([]gw.ServerOption{gw.WithServerName(o.appName)}, o.serverOptions...)...),
		codec:   compressor.NewCodec(),
		options: o,
		log:     zap.S().With("module", "gateway.httpjson"),
	}

	s.engine = gin.New()
	s.engine.Use(
		Recovery(s.log),
		otelgin.Middleware(o.appName),
		RequestID(),
		AccessLogger(s.log),
		CORS(o.allowOrigins),
	)
	s.engine.GET("/metrics", gin.WrapH(o.metricsHandler))
	s.engine.NoRoute(func(gc *gin.Context) {
		gc.JSON(http.StatusNotFound, errorBody{Detail: "Not Found"})
	})

	return s
}

// Route binds an HTTP method and path to the handler registered as name.
func (s *Server) Route(httpMethod, path, name string) {
	s.engine.Handle(httpMethod, path, func(gc *gin.Context) {
		s.Server.Call(NewHTTPContext(gc, name, s))
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until Shutdown or Close.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infof("Listening on %s", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Close closes the listener and every open connection.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) write(gc *gin.Context, res *gw.Response) {
	if res.Error != nil {
		data, _ := json.Marshal(errorBody{Detail: res.Error.Error()})
		s.send(gc, res.Status, "application/json; charset=utf-8", data)
		return
	}

	if raw, ok := res.Result.(*gw.RawBody); ok {
		if raw.Filename != "" {
			gc.Header("Content-Disposition", "attachment; filename="+raw.Filename)
		}
		s.send(gc, res.Status, raw.ContentType, raw.Data)
		return
	}

	data, err := json.Marshal(res.Result)
	if err != nil {
		s.log.Errorf("Encode response of %s: %v", gc.Request.URL.Path, err)
		data, _ = json.Marshal(errorBody{Detail: "Failed to encode response"})
		s.send(gc, gw.StatusServerError, "application/json; charset=utf-8", data)
		return
	}
	s.send(gc, res.Status, "application/json; charset=utf-8", data)
}

func (s *Server) send(gc *gin.Context, status int, contentType string, data []byte) {
	if s.options.compressMinBytes > 0 && len(data) >= s.options.compressMinBytes {
		gc.Header("Vary", "Accept-Encoding")
		if tp := compressor.Negotiate(gc.GetHeader("Accept-Encoding")); tp != compressor.ContentEncodingIdentity {
			compressed, err := s.codec.Compress(tp, data)
			if err == nil {
				gc.Header("Content-Encoding", tp.String())
				data = compressed
			} else {
				s.log.Warnf("Compress %s: %v", tp, err)
			}
		}
	}

	gc.Header("Content-Length", strconv.Itoa(len(data)))
	gc.Data(status, contentType, data)
}
