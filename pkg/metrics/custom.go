package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "commands_total",
			Help:      "Total number of engine commands by result.",
		},
		[]string{"command", "result"}, // result: ok/noop/rejected/error
	)

	TradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "trades_total",
			Help:      "Total number of trades produced by the matching pass.",
		},
	)

	MatchedQuantityTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "matched_quantity_total",
			Help:      "Total quantity matched out of the book.",
		},
	)

	RestingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "matchcore",
			Name:      "resting_orders",
			Help:      "Number of orders currently resting in the book.",
		},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "events_dropped_total",
			Help:      "Total number of engine events dropped because the bus was full.",
		},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchcore",
			Name:      "command_duration_seconds",
			Help:      "Time spent applying a command to the book.",
			Buckets:   []float64{.000005, .00001, .000025, .00005, .0001, .00025, .0005, .001, .005},
		},
		[]string{"command"},
	)
)

var registerOnce sync.Once

// MustRegister 注册到默认 registry，多次调用只注册一次
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CommandsTotal, TradesTotal, MatchedQuantityTotal,
			RestingOrders, EventsDroppedTotal, CommandDuration)
	})
}
