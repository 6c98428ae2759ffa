// Package metrics exposes packaging results in the Prometheus text format.
//
// fw-packager is a one-shot process, so instead of serving /metrics the
// collector writes a file for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/fw-release/internal/domain/release"
)

const namespace = "fw_release"

// Collector holds the packaging gauges of a single run.
type Collector struct {
	path     string
	registry *prometheus.Registry

	archiveSize  *prometheus.GaugeVec
	filesAdded   *prometheus.GaugeVec
	filesMissing *prometheus.GaugeVec
	lastPackaged *prometheus.GaugeVec
	releaseInfo  *prometheus.GaugeVec
}

// New creates a collector that writes to the textfile at path.
func New(path string) *Collector {
	c := &Collector{
		path:     path,
		registry: prometheus.NewRegistry(),
		archiveSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_size_bytes",
				Help:      "Size of the last release archive in bytes",
			},
			[]string{"program"},
		),
		filesAdded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "manifest_files_added",
				Help:      "Manifest files bundled into the last release archive",
			},
			[]string{"program"},
		),
		filesMissing: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "manifest_files_missing",
				Help:      "Manifest files skipped because they were absent",
			},
			[]string{"program"},
		),
		lastPackaged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_packaged_timestamp_seconds",
				Help:      "Creation time of the last release archive (Unix timestamp)",
			},
			[]string{"program"},
		),
		releaseInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "release_info",
				Help:      "Version of the last packaged release",
			},
			[]string{"program", "version", "archive"},
		),
	}

	c.registry.MustRegister(
		c.archiveSize,
		c.filesAdded,
		c.filesMissing,
		c.lastPackaged,
		c.releaseInfo,
	)

	return c
}

// Path returns the textfile location.
func (c *Collector) Path() string {
	return c.path
}

// Observe records a finished archive.
func (c *Collector) Observe(res *release.Result) {
	c.archiveSize.WithLabelValues(res.Program).Set(float64(res.Size))
	c.filesAdded.WithLabelValues(res.Program).Set(float64(len(res.Added)))
	c.filesMissing.WithLabelValues(res.Program).Set(float64(len(res.Missing)))
	c.lastPackaged.WithLabelValues(res.Program).Set(float64(res.CreatedAt.Unix()))
	c.releaseInfo.Reset()
	c.releaseInfo.WithLabelValues(res.Program, res.Version.String(), res.Name).Set(1)
}

// Flush writes all gauges to the textfile atomically.
func (c *Collector) Flush() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(c.path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
