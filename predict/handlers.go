package predict

import (
	"encoding/json"
	"time"

	gw "github.com/xizhibei/go-estimator-gateway"
)

const (
	MethodHealth    = "health"
	MethodModelInfo = "model-info"
	MethodPredict   = "predict"
)

// Registrar accepts named handlers; *gateway.Server and the transports implement it.
type Registrar interface {
	Register(method string, hdl *gw.Handler)
}

// Register installs the gateway operations on r.
// timeout is a backstop above the ML API timeouts the client already applies.
func (g *Gateway) Register(r Registrar, timeout time.Duration) {
	r.Register(MethodHealth, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			res, err := g.Health(c.Ctx())
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(res)
		},
	})

	r.Register(MethodModelInfo, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			res, err := g.ModelInfo(c.Ctx())
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(res)
		},
	})

	r.Register(MethodPredict, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			var body json.RawMessage
			if err := c.Bind(&body); err != nil {
				gw.ReplyErr(c, gw.InvalidArgument("Invalid JSON payload: %v", err))
				return
			}

			req, err := ParseRequest(body)
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}

			res, err := g.Predict(c.Ctx(), req)
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(res)
		},
	})
}
