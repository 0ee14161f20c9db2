package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xizhibei/go-estimator-gateway/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server dispatches transport requests to registered handlers.
type Server struct {
	log        *zap.SugaredLogger  // Logger for server logs.
	handlerMap map[string]*Handler // Map of registered handlers.
	handlerMu  sync.RWMutex        // Guards handlerMap.

	cbList       []OnAfterResponseCallback // List of callbacks to be executed after each response.
	afterResPool sync.Pool                 // Pool of resources for after-response processing.

	options   *serverOptions
	telemetry *telemetry.Telemetry
}

// NewServer creates a new instance of the Server struct with the provided options.
// It initializes the server with default values for the options that are not provided.
func NewServer(options ...ServerOption) *Server {
	o := serverOptions{
		name:        uuid.New().String(),
		logResponse: false,
	}

	for _, option := range options {
		option(&o)
	}

	tel, _ := telemetry.NewNoop()

	return &Server{
		log:        zap.S().With("module", "gateway.server"),
		handlerMap: make(map[string]*Handler),
		options:    &o,
		telemetry:  tel,

		afterResPool: sync.Pool{
			New: func() interface{} {
				return new(AfterResponseEvent)
			},
		},
	}
}

// SetTelemetry sets the telemetry used to record every call.
func (s *Server) SetTelemetry(tel *telemetry.Telemetry) {
	s.telemetry = tel
}

// Name returns the server name attached to metrics.
func (s *Server) Name() string {
	return s.options.name
}

// Register registers a method with its corresponding handler in the server.
// If the method is already registered, it will be overridden.
func (s *Server) Register(method string, hdl *Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()

	if _, ok := s.handlerMap[method]; ok {
		s.log.Warnf("Method %s already registered, will override", method)
	}

	s.handlerMap[method] = hdl
	s.log.Debugf("Method %s registered", method)
}

func (s *Server) handler(method string) (*Handler, bool) {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	hdl, ok := s.handlerMap[method]
	return hdl, ok
}

// timeoutSetter is implemented by contexts that accept a deadline-bound context.
type timeoutSetter interface {
	SetCtx(ctx context.Context)
}

// Call runs the handler registered under c.Method() and makes sure exactly one reply is sent.
// It measures the duration of the call, logs the response if enabled, and emits an event after the response.
func (s *Server) Call(c Context) {
	start := time.Now()

	ctx, span := s.telemetry.StartSpan(c.Ctx(), "Gateway.Call "+c.Method())
	defer span.End()

	defer func() {
		duration := time.Since(start).Round(time.Millisecond)

		evt := s.afterResPool.Get().(*AfterResponseEvent)
		evt.Labels = c.PrometheusLabels()
		evt.Duration = duration
		evt.Res = c.GetResponse()

		status := 0
		var resErr error
		if evt.Res != nil {
			status = evt.Res.Status
			resErr = evt.Res.Error
		}

		if s.options.logResponse {
			s.log.Infof("Response to %s [%d] (%v)", c.ReplyDesc(), status, duration)
		}
		if resErr != nil {
			s.log.Warnf("Method %s failed [%d]: %v", c.Method(), status, resErr)
		}

		s.telemetry.RecordRequest(ctx, duration, c.Method(), status, resErr)
		s.emitAfterResponse(evt)
	}()

	hdl, ok := s.handler(c.Method())
	if !ok {
		c.ReplyError(StatusServerError, fmt.Errorf("Unhandled method: %s", c.Method()))
		return
	}

	if hdl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hdl.Timeout)
		defer cancel()
	}
	if ts, ok := c.(timeoutSetter); ok {
		ts.SetCtx(ctx)
	}

	s.invoke(c, hdl)

	// If the reply succeeds here, the method returned without replying.
	if c.ReplyError(StatusServerError, ErrNoReply) {
		s.log.Warnf("Method %s no reply", c.Method())
	}
}

func (s *Server) invoke(c Context, hdl *Handler) {
	defer func() {
		if i := recover(); i != nil {
			err := errors.Newf("panic in method %s %v", c.Method(), i)
			s.log.Desugar().WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)).Sugar().Error(err)
			c.ReplyError(StatusServerError, err)
		}
	}()

	hdl.Method(c)
}

// AfterResponseEvent is emitted once per call after the reply was written.
type AfterResponseEvent struct {
	Labels   prometheus.Labels
	Duration time.Duration
	Res      *Response
}

// OnAfterResponseCallback is a function type that represents a callback function
// to be executed after a response is sent.
type OnAfterResponseCallback func(e *AfterResponseEvent)

// OnAfterResponse registers a callback function to be executed after each response is sent.
func (s *Server) OnAfterResponse(cb OnAfterResponseCallback) {
	s.cbList = append(s.cbList, cb)
}

func (s *Server) emitAfterResponse(e *AfterResponseEvent) {
	for _, cb := range s.cbList {
		cb(e)
	}
	s.afterResPool.Put(e)
}

// RegisterMetrics registers metrics for monitoring the server's response time and error count.
// Both collectors must accept the labels returned by Context.PrometheusLabels plus "name" and "status";
// errorCount additionally needs "message".
func (s *Server) RegisterMetrics(responseTime *prometheus.HistogramVec, errorCount *prometheus.CounterVec) {
	s.OnAfterResponse(func(e *AfterResponseEvent) {
		status := "0"
		if e.Res != nil {
			status = strconv.FormatInt(int64(e.Res.Status), 10)
		}

		labels := prometheus.Labels{}
		for k, v := range e.Labels {
			labels[k] = v
		}
		labels["name"] = s.options.name
		labels["status"] = status

		if responseTime != nil {
			responseTime.
				With(labels).
				Observe(e.Duration.Seconds())
		}

		if e.Res != nil && e.Res.Error != nil && errorCount != nil {
			labels["message"] = errorClass(e.Res.Error)
			errorCount.
				With(labels).
				Inc()
		}
	})
}

// errorClass keeps the error label bounded; raw messages carry upstream bodies.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return ErrInvalidArgument.Error()
	case errors.Is(err, ErrServiceUnavailable):
		return ErrServiceUnavailable.Error()
	case errors.Is(err, ErrBadGateway):
		return ErrBadGateway.Error()
	case errors.Is(err, ErrInternal):
		return ErrInternal.Error()
	case errors.Is(err, ErrNoReply):
		return ErrNoReply.Error()
	default:
		return "other"
	}
}
