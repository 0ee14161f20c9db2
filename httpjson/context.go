package httpjson

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	gw "github.com/xizhibei/go-estimator-gateway"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 8 << 20

// HTTPContext is the gateway Context of one HTTP request.
type HTTPContext struct {
	*gw.BaseContext
	gc     *gin.Context
	method string
}

// NewHTTPContext creates the Context for gc dispatched to method.
func NewHTTPContext(gc *gin.Context, method string, s *Server) *HTTPContext {
	c := &HTTPContext{
		gc:     gc,
		method: method,
	}
	c.BaseContext = gw.NewBaseContext(gc.Request.Context(), func(res *gw.Response) {
		s.write(gc, res)
	})
	return c
}

// ID returns the request ID assigned by the request ID middleware.
func (c *HTTPContext) ID() string {
	return c.gc.GetString(requestIDKey)
}

// Method returns the handler name the route is bound to.
func (c *HTTPContext) Method() string {
	return c.method
}

// ReplyDesc describes the request for logs.
func (c *HTTPContext) ReplyDesc() string {
	return c.gc.Request.Method + " " + c.gc.Request.URL.Path + " [" + c.ID() + "]"
}

// Bind decodes the JSON request body into request.
func (c *HTTPContext) Bind(request interface{}) error {
	data, err := io.ReadAll(io.LimitReader(c.gc.Request.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return json.Unmarshal(data, request)
}

// Query returns a path parameter, falling back to the query string.
func (c *HTTPContext) Query(key string) string {
	if v := c.gc.Param(key); v != "" {
		return v
	}
	return c.gc.Query(key)
}

// PrometheusLabels returns the labels of the request metrics.
func (c *HTTPContext) PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{
		"method": c.method,
	}
}
