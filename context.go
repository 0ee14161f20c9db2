package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Response represents a response message.
// Result holds the response data.
// Error holds any error that occurred during the request.
// Status holds the status code of the response.
type Response struct {
	Result interface{}
	Error  error
	Status int
}

// Context represents a single inbound request handed to a Handler.
type Context interface {
	// ID returns the request identifier.
	ID() string

	// Method returns the name of the registered handler being called.
	Method() string

	// Ctx returns the underlying context.Context.
	Ctx() context.Context

	// ReplyDesc returns a short description of where the reply goes, for logs.
	ReplyDesc() string

	// Bind decodes the request body into request.
	Bind(request interface{}) error

	// Query returns a query or path parameter, empty when absent.
	Query(key string) string

	// Reply sends a response message.
	// It returns true if the response was sent successfully, false otherwise.
	Reply(res *Response) bool

	// ReplyOK sends a successful response message with the given data.
	// It returns true if the response was sent successfully, false otherwise.
	ReplyOK(data interface{}) bool

	// ReplyError sends an error response message with the given status and error.
	// It returns true if the response was sent successfully, false otherwise.
	ReplyError(status int, err error) bool

	// GetResponse returns the response message.
	GetResponse() *Response

	// PrometheusLabels returns the Prometheus labels associated with the context.
	PrometheusLabels() prometheus.Labels
}

// BaseContext carries the reply bookkeeping shared by transport contexts.
type BaseContext struct {
	res       *Response           // res is the response object.
	resMu     sync.Mutex          // resMu is a mutex to synchronize access to the response object.
	replyed   atomic.Bool         // replyed is an atomic boolean flag indicating if a reply has been sent.
	BaseReply func(res *Response) // BaseReply writes the response to the transport.
	ctx       context.Context     // ctx is the underlying context.
}

// NewBaseContext creates a BaseContext bound to ctx that writes replies with reply.
func NewBaseContext(ctx context.Context, reply func(res *Response)) *BaseContext {
	return &BaseContext{
		ctx:       ctx,
		BaseReply: reply,
	}
}

// Ctx returns the context associated with the BaseContext.
// If no context is set, it returns the background context.
func (c *BaseContext) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// SetCtx replaces the underlying context, e.g. to attach a deadline.
func (c *BaseContext) SetCtx(ctx context.Context) {
	c.ctx = ctx
}

// Reply sends a response to the client.
// Only the first reply is written; later calls return false.
func (c *BaseContext) Reply(res *Response) bool {
	if !c.replyed.CompareAndSwap(false, true) {
		return false
	}

	c.setResponse(res)

	if c.BaseReply != nil {
		c.BaseReply(res)
	}

	return true
}

// ReplyOK sends a successful response with the given data.
func (c *BaseContext) ReplyOK(data interface{}) bool {
	return c.Reply(&Response{
		Status: StatusOK,
		Result: data,
	})
}

// ReplyError sends an error response with the specified status code and error message.
func (c *BaseContext) ReplyError(status int, err error) bool {
	return c.Reply(&Response{
		Status: status,
		Error:  err,
	})
}

// ReplyErr sends err with the status derived from its error mark.
func ReplyErr(c Context, err error) bool {
	return c.ReplyError(StatusOf(err), err)
}

func (c *BaseContext) setResponse(res *Response) {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	c.res = res
}

// GetResponse returns the response associated with the context, nil before any reply.
func (c *BaseContext) GetResponse() *Response {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	return c.res
}

// Handler represents a registered gateway operation.
// Method is the function to be executed when handling the request.
// Timeout bounds the request context handed to Method; zero means no extra deadline.
type Handler struct {
	Method  func(c Context)
	Timeout time.Duration
}
