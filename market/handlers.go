package market

import (
	"bytes"
	"strings"
	"time"

	gw "github.com/xizhibei/go-estimator-gateway"
)

const (
	MethodHealth               = "market.health"
	MethodSummary              = "market.summary"
	MethodSegments             = "market.segments"
	MethodBedroomsDistribution = "market.distribution.bedrooms"
	MethodWhatIf               = "market.what-if"
	MethodExport               = "market.export"
)

// ExportFilename is the attachment name of the CSV export.
const ExportFilename = "market_data.csv"

// Registrar accepts named handlers.
type Registrar interface {
	Register(method string, hdl *gw.Handler)
}

// Register installs the market operations on r.
func (a *Analyzer) Register(r Registrar, timeout time.Duration) {
	r.Register(MethodHealth, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			c.ReplyOK(&gw.RawBody{
				ContentType: "text/plain; charset=utf-8",
				Data:        []byte("ok"),
			})
		},
	})

	r.Register(MethodSummary, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			c.ReplyOK(a.data.Summary())
		},
	})

	r.Register(MethodSegments, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			f, err := ParseFilter(c.Query)
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(a.data.Filter(f))
		},
	})

	r.Register(MethodBedroomsDistribution, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			f, err := ParseFilter(c.Query)
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(a.data.AverageByBedrooms(f))
		},
	})

	r.Register(MethodWhatIf, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			var req WhatIfRequest
			if err := c.Bind(&req); err != nil {
				gw.ReplyErr(c, gw.InvalidArgument("Invalid what-if request: %v", err))
				return
			}

			res, err := a.WhatIf(c.Ctx(), &req)
			if err != nil {
				gw.ReplyErr(c, err)
				return
			}
			c.ReplyOK(res)
		},
	})

	r.Register(MethodExport, &gw.Handler{
		Timeout: timeout,
		Method: func(c gw.Context) {
			tp := c.Query("type")
			if !strings.EqualFold(tp, "csv") {
				gw.ReplyErr(c, gw.InvalidArgument("Unsupported export format: %s", tp))
				return
			}

			var buf bytes.Buffer
			if err := a.data.WriteCSV(&buf); err != nil {
				gw.ReplyErr(c, gw.Internal(err, "Export failed"))
				return
			}
			c.ReplyOK(&gw.RawBody{
				ContentType: "text/csv; charset=utf-8",
				Filename:    ExportFilename,
				Data:        buf.Bytes(),
			})
		},
	})
}
