package lob

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects matching activity for Prometheus scraping. One Metrics
// instance can be shared by every book in a process; series are labelled by
// ticker. All updates happen on the book's writer goroutine, so the
// collectors only need their own internal synchronization.
type Metrics struct {
	submissions   *prometheus.CounterVec
	trades        *prometheus.CounterVec
	tradedVolume  *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	restingOrders *prometheus.GaugeVec
	priceLevels   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_submissions_total",
			Help: "Orders submitted, by validation result.",
		}, []string{"ticker", "result"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_trades_total",
			Help: "Trades executed.",
		}, []string{"ticker"}),
		tradedVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_traded_volume_total",
			Help: "Quantity traded.",
		}, []string{"ticker"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_cancellations_total",
			Help: "Orders cancelled.",
		}, []string{"ticker"}),
		restingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lob_resting_orders",
			Help: "Resting orders per side.",
		}, []string{"ticker", "side"}),
		priceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lob_price_levels",
			Help: "Occupied price levels per side.",
		}, []string{"ticker", "side"}),
	}
	reg.MustRegister(
		m.submissions,
		m.trades,
		m.tradedVolume,
		m.cancellations,
		m.restingOrders,
		m.priceLevels,
	)
	return m
}

func (m *Metrics) observeSubmit(ticker string, result ValidationResult, trades int) {
	m.submissions.WithLabelValues(ticker, string(result)).Inc()
	if trades > 0 {
		m.trades.WithLabelValues(ticker).Add(float64(trades))
	}
}

func (m *Metrics) observeVolume(ticker string, quantity int64) {
	m.tradedVolume.WithLabelValues(ticker).Add(float64(quantity))
}

func (m *Metrics) observeCancel(ticker string) {
	m.cancellations.WithLabelValues(ticker).Inc()
}

func (m *Metrics) observeDepth(ticker string, stats BookStats) {
	m.restingOrders.WithLabelValues(ticker, Bid.String()).Set(float64(stats.BidOrderCount))
	m.restingOrders.WithLabelValues(ticker, Ask.String()).Set(float64(stats.AskOrderCount))
	m.priceLevels.WithLabelValues(ticker, Bid.String()).Set(float64(stats.BidLevelCount))
	m.priceLevels.WithLabelValues(ticker, Ask.String()).Set(float64(stats.AskLevelCount))
}
