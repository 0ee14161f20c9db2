package gateway

type serverOptions struct {
	logResponse bool
	name        string
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(o *serverOptions)

// WithServerName is a function that returns a ServerOption to set the name of the server.
// The name is attached to every metric the server records.
func WithServerName(name string) ServerOption {
	return func(o *serverOptions) {
		o.name = name
	}
}

// WithLogResponse is a function that returns a ServerOption to enable or disable logging of response.
// It takes a boolean parameter logResponse, which determines whether to log the response or not.
func WithLogResponse(logResponse bool) ServerOption {
	return func(o *serverOptions) {
		o.logResponse = logResponse
	}
}
