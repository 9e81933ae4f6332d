// Package prometheus provides Prometheus collectors for doora metrics.
//
// [NewPrometheusExporter] accepts a [doora.Engine] and exposes an [http.Handler]
// that renders all doora counters and histograms in Prometheus text exposition format.
// Counter names are prefixed doora_*_total; the single histogram is
// doora_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
