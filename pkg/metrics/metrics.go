// Package metrics exposes affiliate pipeline counters in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	ClickRecorded = "recorded"
	ClickBuffered = "buffered"
	ClickIgnored  = "ignored"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	clicks          *prometheus.CounterVec
	sales           prometheus.Counter
	commission      prometheus.Counter
	duplicateSales  prometheus.Counter
	saleTransitions *prometheus.CounterVec
	orders          *prometheus.CounterVec
	statsDrift      prometheus.Counter
}

// New registers the affiliate instruments on registerer.
func New(registerer prometheus.Registerer, appName string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"service": appName}

	m := &Metrics{
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_affiliate_clicks_total",
			Help:        "Referral visits by outcome.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "storefront_affiliate_sales_total",
			Help:        "Ledger entries recorded for attributed orders.",
			ConstLabels: constLabels,
		}),
		commission: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "storefront_affiliate_commission_total",
			Help:        "Commission accrued on recorded sales, in currency units.",
			ConstLabels: constLabels,
		}),
		duplicateSales: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "storefront_affiliate_duplicate_sales_total",
			Help:        "Rejected attempts to record a second sale for an order.",
			ConstLabels: constLabels,
		}),
		saleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_affiliate_sale_transitions_total",
			Help:        "Sale status transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_orders_total",
			Help:        "Orders created by attribution.",
			ConstLabels: constLabels,
		}, []string{"attributed"}),
		statsDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "storefront_affiliate_stats_drift_total",
			Help:        "Affiliates whose counters were corrected by reconciliation.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(m.clicks, m.sales, m.commission, m.duplicateSales, m.saleTransitions, m.orders, m.statsDrift)
	return m
}

func (m *Metrics) ObserveClick(result string) {
	if m == nil {
		return
	}
	m.clicks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSale(commission decimal.Decimal) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.commission.Add(commission.InexactFloat64())
}

func (m *Metrics) ObserveDuplicateSale() {
	if m == nil {
		return
	}
	m.duplicateSales.Inc()
}

func (m *Metrics) ObserveSaleTransition(from, to string) {
	if m == nil {
		return
	}
	m.saleTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveOrder(attributed bool) {
	if m == nil {
		return
	}
	label := "false"
	if attributed {
		label = "true"
	}
	m.orders.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveDrift(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.statsDrift.Add(float64(count))
}

// Handler serves the gatherer's metrics on a fasthttp route.
func Handler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
