package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry, "storefront-test")

	m.ObserveClick(ClickRecorded)
	m.ObserveClick(ClickRecorded)
	m.ObserveClick(ClickIgnored)
	m.ObserveSale(decimal.RequireFromString("9.90"))
	m.ObserveSaleTransition("pending", "voided")
	m.ObserveOrder(true)
	m.ObserveOrder(false)
	m.ObserveDrift(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.clicks.WithLabelValues(ClickRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clicks.WithLabelValues(ClickIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sales))
	assert.InDelta(t, 9.90, testutil.ToFloat64(m.commission), 0.0001)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saleTransitions.WithLabelValues("pending", "voided")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.statsDrift))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveClick(ClickRecorded)
		m.ObserveSale(decimal.NewFromInt(1))
		m.ObserveDuplicateSale()
		m.ObserveSaleTransition("pending", "confirmed")
		m.ObserveOrder(true)
		m.ObserveDrift(1)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry, "storefront-test")
	m.ObserveClick(ClickBuffered)

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	Handler(registry)(&ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `storefront_affiliate_clicks_total{result="buffered",service="storefront-test"} 1`)
}
