package gateway

const (
	StatusOK                 = 200
	StatusClientError        = 400
	StatusServerError        = 500
	StatusBadGateway         = 502
	StatusServiceUnavailable = 503
)
