package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Collector on a private registry.
type Prometheus struct {
	framesRendered  prometheus.Counter
	framesDisplayed prometheus.Counter
	framesSkipped   prometheus.Counter
	ringFull        prometheus.Counter
	waitingDraws    prometheus.Counter
	lockFailures    *prometheus.CounterVec

	renderDuration  prometheus.Histogram
	displayDuration prometheus.Histogram

	namespace string
	labels    prometheus.Labels
	registry  *prometheus.Registry
}

var frameBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}

// NewPrometheus creates a collector whose series carry a constant role label.
func NewPrometheus(namespace, roleName string) *Prometheus {
	if namespace == "" {
		namespace = "interop"
	}
	labels := prometheus.Labels{"role": roleName}

	p := &Prometheus{namespace: namespace, labels: labels, registry: prometheus.NewRegistry()}

	p.framesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "frames_rendered_total",
		Help:        "Frames rendered into a slot and published",
		ConstLabels: labels,
	})
	p.framesDisplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "frames_displayed_total",
		Help:        "Frames displayed from a slot",
		ConstLabels: labels,
	})
	p.framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "frames_skipped_total",
		Help:        "Frames retired without display because a newer one was ready",
		ConstLabels: labels,
	})
	p.ringFull = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "ring_full_ticks_total",
		Help:        "Producer ticks skipped because every slot was pending",
		ConstLabels: labels,
	})
	p.waitingDraws = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "waiting_draws_total",
		Help:        "Redraws that showed the waiting indicator",
		ConstLabels: labels,
	})
	p.lockFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "lock_failures_total",
		Help:        "Failed slot lock operations",
		ConstLabels: labels,
	}, []string{"op", "reason"})
	p.renderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "render_duration_seconds",
		Help:        "Time spent rendering a frame while holding the slot",
		ConstLabels: labels,
		Buckets:     frameBuckets,
	})
	p.displayDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "display_duration_seconds",
		Help:        "Time spent displaying a frame while holding the slot",
		ConstLabels: labels,
		Buckets:     frameBuckets,
	})

	p.registry.MustRegister(
		p.framesRendered,
		p.framesDisplayed,
		p.framesSkipped,
		p.ringFull,
		p.waitingDraws,
		p.lockFailures,
		p.renderDuration,
		p.displayDuration,
	)
	return p
}

// WatchCounters exports the shared counters as gauges read at scrape time.
func (p *Prometheus) WatchCounters(src CounterSource) {
	ns := p.namespace
	p.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "produce_count",
			Help:        "Shared produce counter",
			ConstLabels: p.labels,
		}, func() float64 { return float64(src.ProduceCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "consume_count",
			Help:        "Shared consume counter",
			ConstLabels: p.labels,
		}, func() float64 { return float64(src.ConsumeCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "frames_in_flight",
			Help:        "Frames produced and not yet consumed",
			ConstLabels: p.labels,
		}, func() float64 { return float64(src.InFlight()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "frame_interval_seconds",
			Help:        "Current producer frame interval",
			ConstLabels: p.labels,
		}, func() float64 { return src.FrameInterval().Seconds() }),
	)
}

func (p *Prometheus) FrameRendered(d time.Duration) {
	p.framesRendered.Inc()
	p.renderDuration.Observe(d.Seconds())
}

func (p *Prometheus) RingFull() { p.ringFull.Inc() }

func (p *Prometheus) FrameDisplayed(d time.Duration) {
	p.framesDisplayed.Inc()
	p.displayDuration.Observe(d.Seconds())
}

func (p *Prometheus) FramesSkipped(n int) {
	if n > 0 {
		p.framesSkipped.Add(float64(n))
	}
}

func (p *Prometheus) WaitingDrawn() { p.waitingDraws.Inc() }

func (p *Prometheus) LockFailure(op, reason string) {
	p.lockFailures.WithLabelValues(op, reason).Inc()
}

// Registry returns the Prometheus registry for HTTP handler setup
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Serve returns as soon as the listener closes; in-flight scrapes may
	// still be reading watched counters until Shutdown completes.
	<-shutdownDone
	return nil
}

var _ Collector = (*Prometheus)(nil)
