// Package metrics exports the per-channel state of the spectral
// suppressors as Prometheus metrics.
package metrics

import (
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/spectral"
)

const namespace = "voicerestore"

// Collector implements spectral.HopObserver.
type Collector struct {
	speechProbability *prometheus.GaugeVec
	noiseConfidence   *prometheus.GaugeVec
	effectiveAmount   *prometheus.GaugeVec
	meanGainDB        *prometheus.GaugeVec
	hops              *prometheus.CounterVec
	bypassedHops      *prometheus.CounterVec
}

var _ spectral.HopObserver = (*Collector)(nil)

// New creates a Collector; the backend label distinguishes several
// suppressors exported by one process.
func New(backend string) *Collector {
	labels := []string{"channel"}
	constLabels := prometheus.Labels{"backend": backend}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        name,
				Help:        help,
				ConstLabels: constLabels,
			},
			labels,
		)
	}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        name,
				Help:        help,
				ConstLabels: constLabels,
			},
			labels,
		)
	}
	return &Collector{
		speechProbability: gauge("speech_probability", "Speech probability of the last analysis cycle"),
		noiseConfidence:   gauge("noise_confidence", "Confidence that the current content is noise"),
		effectiveAmount:   gauge("effective_amount", "Reduction amount after the noise-confidence scaling"),
		meanGainDB:        gauge("mean_gain_db", "Mean spectral gain of the last analysis cycle in dB"),
		hops:              counter("hops_total", "Analysis cycles processed"),
		bypassedHops:      counter("bypassed_hops_total", "Analysis cycles emitted without processing"),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.speechProbability,
		c.noiseConfidence,
		c.effectiveAmount,
		c.meanGainDB,
		c.hops,
		c.bypassedHops,
	}
}

func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range c.collectors() {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) ObserveHop(
	channel audio.Channel,
	analysis spectral.Analysis,
	gains []float64,
) {
	ch := strconv.Itoa(int(channel))
	c.hops.WithLabelValues(ch).Inc()
	if analysis.Bypass {
		c.bypassedHops.WithLabelValues(ch).Inc()
	}
	c.speechProbability.WithLabelValues(ch).Set(analysis.SpeechProbability)
	c.noiseConfidence.WithLabelValues(ch).Set(analysis.NoiseConfidence)
	c.effectiveAmount.WithLabelValues(ch).Set(analysis.EffectiveAmount)
	c.meanGainDB.WithLabelValues(ch).Set(MeanGainDB(gains))
}

// MeanGainDB is the mean of the gains converted to dB, floored at -120 dB.
func MeanGainDB(gains []float64) float64 {
	if len(gains) == 0 {
		return 0
	}
	var sum float64
	for _, g := range gains {
		sum += g
	}
	mean := sum / float64(len(gains))
	return 20 * math.Log10(max(mean, 1e-6))
}
