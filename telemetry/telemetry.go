// Package telemetry exports the FastSLAM service's trace spans and stats.
package telemetry

import (
	"time"

	"go.viam.com/utils/perf"
)

const reportingInterval = time.Second

// SetupTelemetry starts a development exporter that logs spans such as
// viamfastslam::FastSLAMService::Predict as they complete. The caller stops it.
func SetupTelemetry() (perf.Exporter, error) {
	exporter := perf.NewDevelopmentExporterWithOptions(perf.DevelopmentExporterOptions{
		ReportingInterval: reportingInterval,
	})
	if err := exporter.Start(); err != nil {
		return nil, err
	}

	return exporter, nil
}
