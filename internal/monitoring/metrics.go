package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Simulation metrics
	simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_simulations_total",
			Help: "Total number of backtest simulations",
		},
		[]string{"outcome"},
	)

	simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strategy_lab_simulation_duration_seconds",
			Help:    "Wall time of a single simulation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"direction", "exit_reason"},
	)

	tradePnL = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strategy_lab_trade_pnl",
			Help:    "Distribution of simulated trade P&L",
			Buckets: []float64{-1000, -250, -100, -25, -5, 0, 5, 25, 100, 250, 1000},
		},
	)

	// Optimization metrics
	trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_trials_total",
			Help: "Total number of optimization trials",
		},
		[]string{"method", "state"},
	)

	bestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategy_lab_best_score",
			Help: "Best objective value of an optimization run",
		},
		[]string{"run_id"},
	)

	foldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_walkforward_folds_total",
			Help: "Total number of walk-forward folds evaluated",
		},
		[]string{"mode"},
	)

	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_signals_total",
			Help: "Total number of evaluator signals",
		},
		[]string{"engine", "direction"},
	)

	signalConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategy_lab_signal_confidence",
			Help: "Confidence of the last signal",
		},
		[]string{"engine", "symbol"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategy_lab_current_price",
			Help: "Last close seen by the live feed",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_lab_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(simulationsTotal)
	prometheus.MustRegister(simulationDuration)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(trialsTotal)
	prometheus.MustRegister(bestScore)
	prometheus.MustRegister(foldsTotal)
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(signalConfidence)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSimulation records one finished simulation
func RecordSimulation(outcome string, elapsed time.Duration) {
	simulationsTotal.WithLabelValues(outcome).Inc()
	simulationDuration.Observe(elapsed.Seconds())
}

// RecordTrade records a closed simulated trade
func RecordTrade(direction, exitReason string, pnl float64) {
	tradesTotal.WithLabelValues(direction, exitReason).Inc()
	tradePnL.Observe(pnl)
}

// RecordTrial records an optimization trial by final state
func RecordTrial(method, state string) {
	trialsTotal.WithLabelValues(method, state).Inc()
}

// UpdateBestScore sets the best score of a run
func UpdateBestScore(runID string, score float64) {
	bestScore.WithLabelValues(runID).Set(score)
}

// ClearBestScore drops the series of a finished run
func ClearBestScore(runID string) {
	bestScore.DeleteLabelValues(runID)
}

// RecordFold records one evaluated walk-forward fold
func RecordFold(mode string) {
	foldsTotal.WithLabelValues(mode).Inc()
}

// RecordSignal records an evaluator signal
func RecordSignal(engine, symbol, direction string, confidence float64) {
	signalsTotal.WithLabelValues(engine, direction).Inc()
	signalConfidence.WithLabelValues(engine, symbol).Set(confidence)
}

// UpdatePrice updates the last seen price
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
