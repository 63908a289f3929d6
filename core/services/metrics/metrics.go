// Package metrics wires four gauge/counter families against a
// caller-supplied prometheus.Registerer:
//
//   upstreams.lag{chain,upstream}
//   upstreams.availability.status{chain,upstream}
//   upstreams.availability{chain,status}
//   upstreams.connected{chain}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

// Registrar is what Multistream calls on upstream add/remove and, for
// lag/status, on each periodic status print. A remove must deregister to avoid stale
// gauges pointing at dead upstreams.
type Registrar interface {
	RegisterUpstream(chain models.ChainRef, upstreamID string)
	DeregisterUpstream(chain models.ChainRef, upstreamID string)
	SetLag(chain models.ChainRef, upstreamID string, lag int64)
	SetStatus(chain models.ChainRef, upstreamID string, status upstream.Availability)
	// SetAvailabilityCounts records how many upstreams currently sit
	// at each Availability level ("upstreams.availability{chain,status}").
	SetAvailabilityCounts(chain models.ChainRef, counts map[upstream.Availability]int)
}

// NoopRegistrar discards everything; used when the embedding
// application wires no metrics backend.
type NoopRegistrar struct{}

func (NoopRegistrar) RegisterUpstream(models.ChainRef, string)                 {}
func (NoopRegistrar) DeregisterUpstream(models.ChainRef, string)               {}
func (NoopRegistrar) SetLag(models.ChainRef, string, int64)                    {}
func (NoopRegistrar) SetStatus(models.ChainRef, string, upstream.Availability) {}
func (NoopRegistrar) SetAvailabilityCounts(models.ChainRef, map[upstream.Availability]int) {}

// PrometheusRegistrar registers the four families against reg.
type PrometheusRegistrar struct {
	lag            *prometheus.GaugeVec
	availability   *prometheus.GaugeVec
	availabilityBy *prometheus.GaugeVec
	connected      *prometheus.GaugeVec
}

func NewPrometheusRegistrar(reg prometheus.Registerer) *PrometheusRegistrar {
	p := &PrometheusRegistrar{
		lag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstreams_lag",
			Help: "Current lag, in blocks, of an upstream behind the highest known peer.",
		}, []string{"chain", "upstream"}),
		availability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstreams_availability_status",
			Help: "Numeric encoding of an upstream's current UpstreamAvailability.",
		}, []string{"chain", "upstream"}),
		availabilityBy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstreams_availability",
			Help: "Count of upstreams currently at a given status.",
		}, []string{"chain", "status"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upstreams_connected",
			Help: "Count of upstreams currently registered with the multistream.",
		}, []string{"chain"}),
	}
	reg.MustRegister(p.lag, p.availability, p.availabilityBy, p.connected)
	return p
}

func (p *PrometheusRegistrar) RegisterUpstream(chain models.ChainRef, id string) {
	p.connected.WithLabelValues(chain.ChainCode).Inc()
}

func (p *PrometheusRegistrar) DeregisterUpstream(chain models.ChainRef, id string) {
	p.lag.DeleteLabelValues(chain.ChainCode, id)
	p.availability.DeleteLabelValues(chain.ChainCode, id)
	p.connected.WithLabelValues(chain.ChainCode).Dec()
}

func (p *PrometheusRegistrar) SetLag(chain models.ChainRef, id string, lag int64) {
	p.lag.WithLabelValues(chain.ChainCode, id).Set(float64(lag))
}

func (p *PrometheusRegistrar) SetStatus(chain models.ChainRef, id string, status upstream.Availability) {
	p.availability.WithLabelValues(chain.ChainCode, id).Set(float64(status))
}

func (p *PrometheusRegistrar) SetAvailabilityCounts(chain models.ChainRef, counts map[upstream.Availability]int) {
	for status, n := range counts {
		p.availabilityBy.WithLabelValues(chain.ChainCode, status.String()).Set(float64(n))
	}
}
