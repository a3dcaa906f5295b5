// Package metrics records pipeline counters in a private prometheus registry
// and exports them as a node_exporter textfile at the end of a run.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tophits/internal/core"
)

const namespace = "tophits"

// Stage names used as label values.
const (
	StageConnect   = "connect"
	StageResolve   = "resolve"
	StageExtract   = "extract"
	StageTransform = "transform"
	StagePersist   = "persist"
)

type Metrics struct {
	registry *prometheus.Registry

	CatalogCallsTotal    *prometheus.CounterVec
	RecordsTotal         *prometheus.CounterVec
	DuplicatesTotal      prometheus.Counter
	InvalidDatesTotal    prometheus.Counter
	MissingPlaylists     prometheus.Counter
	StageDuration        *prometheus.HistogramVec
	LastSuccessTimestamp prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CatalogCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_calls_total",
				Help:      "Total number of catalog API calls",
			},
			[]string{"operation", "status"},
		),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Number of track records leaving each stage",
			},
			[]string{"stage"},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_total",
				Help:      "Records dropped as duplicates of (track, artist, year)",
			},
		),
		InvalidDatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_release_dates_total",
				Help:      "Album release dates that could not be parsed",
			},
		),
		MissingPlaylists: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_playlists_total",
				Help:      "Requested years for which no playlist was found",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"stage"},
		),
		LastSuccessTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
	}

	m.registry.MustRegister(
		m.CatalogCallsTotal,
		m.RecordsTotal,
		m.DuplicatesTotal,
		m.InvalidDatesTotal,
		m.MissingPlaylists,
		m.StageDuration,
		m.LastSuccessTimestamp,
	)

	return m
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// All recording methods are safe on a nil *Metrics so callers that do not
// care about metrics can pass nil.

func (m *Metrics) RecordCatalogCall(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CatalogCallsTotal.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) AddRecords(stage string, n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Add(float64(n))
}

func (m *Metrics) AddInvalidDates(n int) {
	if m == nil {
		return
	}
	m.InvalidDatesTotal.Add(float64(n))
}

func (m *Metrics) RecordMissingPlaylist() {
	if m == nil {
		return
	}
	m.MissingPlaylists.Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessTimestamp.Set(float64(at.Unix()))
}

// Catalog operation label values.
const (
	OpSearch         = "search"
	OpPlaylistTracks = "playlist_tracks"
	OpArtist         = "artist"
)

type instrumentedCatalog struct {
	next    core.Catalog
	metrics *Metrics
}

// InstrumentCatalog wraps c so every call is counted by operation and outcome.
func InstrumentCatalog(c core.Catalog, m *Metrics) core.Catalog {
	if m == nil {
		return c
	}
	return &instrumentedCatalog{next: c, metrics: m}
}

func (ic *instrumentedCatalog) SearchPlaylists(ctx context.Context, query string, limit int) ([]core.PlaylistMatch, error) {
	matches, err := ic.next.SearchPlaylists(ctx, query, limit)
	ic.metrics.RecordCatalogCall(OpSearch, err)
	return matches, err
}

func (ic *instrumentedCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]core.CatalogTrack, error) {
	tracks, err := ic.next.PlaylistTracks(ctx, playlistID)
	ic.metrics.RecordCatalogCall(OpPlaylistTracks, err)
	return tracks, err
}

func (ic *instrumentedCatalog) Artist(ctx context.Context, artistID string) (*core.CatalogArtist, error) {
	artist, err := ic.next.Artist(ctx, artistID)
	ic.metrics.RecordCatalogCall(OpArtist, err)
	return artist, err
}
