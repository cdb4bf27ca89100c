// Package metrics exports chain activity as Prometheus metrics, fed from
// the committed event stream.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tolelom/triviachain/events"
)

const namespace = "triviachain"

// Metrics holds the collectors. Each instance owns its registry so tests
// can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	txs          *prometheus.CounterVec
	events       *prometheus.CounterVec
	eliminations *prometheus.CounterVec
	gamesCreated prometheus.Counter
	gamesEnded   prometheus.Counter
	nftsMinted   prometheus.Counter
	height       prometheus.Gauge
}

// New registers the collectors and subscribes them to emitter.
func New(emitter *events.Emitter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Executed transactions by type and outcome.",
		}, []string{"type", "ok"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Published chain events by type.",
		}, []string{"type"}),
		eliminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eliminations_total",
			Help:      "Players eliminated, by stage.",
		}, []string{"stage"}),
		gamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Games created.",
		}),
		gamesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_ended_total",
			Help:      "Games ended.",
		}),
		nftsMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nfts_minted_total",
			Help:      "Rank badges minted.",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "height",
			Help:      "Height of the last executed transaction.",
		}),
	}
	m.registry.MustRegister(
		m.txs, m.events, m.eliminations,
		m.gamesCreated, m.gamesEnded, m.nftsMinted, m.height,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	emitter.SubscribeAll(m.observe)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(ev events.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
	m.height.Set(float64(ev.Height))

	switch ev.Type {
	case events.EventTxExecuted:
		typ, _ := ev.Data["type"].(string)
		ok, _ := ev.Data["ok"].(bool)
		m.txs.WithLabelValues(typ, fmt.Sprint(ok)).Inc()
	case events.EventGameCreated:
		m.gamesCreated.Inc()
	case events.EventGameEnded:
		m.gamesEnded.Inc()
	case events.EventNFTMinted:
		m.nftsMinted.Inc()
	case events.EventPlayerEliminated:
		m.eliminations.WithLabelValues(fmt.Sprint(ev.Data["stage"])).Inc()
	}
}
