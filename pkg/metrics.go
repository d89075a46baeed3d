package roomdb

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry *prometheus.Registry

	// Gauges
	facts           prometheus.GaugeFunc
	subscriptions   prometheus.GaugeFunc
	openConnections prometheus.GaugeFunc

	// Counters
	callbackFailures prometheus.Counter
	visionBatches    prometheus.Counter
	droppedGraphics  prometheus.Counter

	// Latency summaries
	claimLatency    prometheus.Summary
	retractLatency  prometheus.Summary
	replaceLatency  prometheus.Summary
	selectLatency   prometheus.Summary
	evaluateLatency prometheus.Summary
	frameLatency    prometheus.Summary
}

func newMetrics(db *Database) *metrics {
	m := &metrics{
		facts: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "facts",
				Help: "number of facts currently in the store",
			},
			func() float64 {
				return float64(db.Len())
			},
		),
		subscriptions: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "subscriptions",
				Help: "number of live subscriptions",
			},
			func() float64 {
				return float64(db.NumSubscriptions())
			},
		),
		openConnections: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "open_connections",
				Help: "number of websocket connections currently open",
			},
			func() float64 {
				return float64(db.numConnections())
			},
		),
		callbackFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "callback_failures",
				Help: "number of subscription callbacks that returned an error or panicked",
			},
		),
		visionBatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vision_batches",
				Help: "number of detection batches applied to the store",
			},
		),
		droppedGraphics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dropped_graphics",
				Help: "number of graphics facts that could not be decoded",
			},
		),
		claimLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "claim_latency_ns",
				Help: "latency to claim a fact",
			},
		),
		retractLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "retract_latency_ns",
				Help: "latency to retract a pattern",
			},
		),
		replaceLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "replace_latency_ns",
				Help: "latency to swap out the facts matching a pattern",
			},
		),
		selectLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "select_latency_ns",
				Help: "latency to solve a query",
			},
		),
		evaluateLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "evaluate_latency_ns",
				Help: "latency to evaluate all subscriptions and run their callbacks",
			},
		),
		frameLatency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "frame_latency_ns",
				Help: "latency of one driver step: replace, sync, evaluate, render",
			},
		),
	}
	m.registry = prometheus.NewPedanticRegistry()
	reg := m.registry

	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())

	reg.MustRegister(m.facts)
	reg.MustRegister(m.subscriptions)
	reg.MustRegister(m.openConnections)
	reg.MustRegister(m.callbackFailures)
	reg.MustRegister(m.visionBatches)
	reg.MustRegister(m.droppedGraphics)
	reg.MustRegister(m.claimLatency)
	reg.MustRegister(m.retractLatency)
	reg.MustRegister(m.replaceLatency)
	reg.MustRegister(m.selectLatency)
	reg.MustRegister(m.evaluateLatency)
	reg.MustRegister(m.frameLatency)
	return m
}
