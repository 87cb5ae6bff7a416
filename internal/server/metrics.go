package server

import (
	"context"
	"time"

	"github.com/johann/primevista/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for the server. Each Server owns its
// own registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	formsTotal      *prometheus.CounterVec
	authFailures    prometheus.Counter
	uploadBytes     prometheus.Counter
	contentMutation *prometheus.CounterVec
}

// countsFunc reports current row counts; *storage.Storage satisfies it.
type countsFunc func(ctx context.Context) (model.Counts, error)

// NewMetrics creates and registers all metrics
func NewMetrics(counts countsFunc, logger zerolog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "primevista_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		formsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "primevista_form_submissions_total",
			Help: "Public form submissions by form and outcome",
		}, []string{"form", "result"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "primevista_admin_auth_failures_total",
			Help: "Rejected admin authentication attempts",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "primevista_upload_bytes_total",
			Help: "Total bytes of accepted image uploads",
		}),
		contentMutation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "primevista_content_mutations_total",
			Help: "Admin create/update/delete operations by entity",
		}, []string{"entity", "op"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.formsTotal,
		m.authFailures,
		m.uploadBytes,
		m.contentMutation,
		&contentCollector{counts: counts, logger: logger},
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for the metrics listener and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var contentRowsDesc = prometheus.NewDesc(
	"primevista_content_rows",
	"Rows currently stored per content table",
	[]string{"entity"}, nil,
)

// contentCollector reads row counts from the store on every scrape.
type contentCollector struct {
	counts countsFunc
	logger zerolog.Logger
}

func (c *contentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- contentRowsDesc
}

func (c *contentCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.counts(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("collecting content counts")
		return
	}

	for entity, n := range map[string]int{
		"services":    counts.Services,
		"projects":    counts.Projects,
		"clients":     counts.Clients,
		"subscribers": counts.Subscribers,
		"contacts":    counts.Contacts,
	} {
		ch <- prometheus.MustNewConstMetric(contentRowsDesc, prometheus.GaugeValue, float64(n), entity)
	}
}
