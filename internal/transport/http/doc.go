// Package http serves the observability endpoints of a running batch:
// Prometheus metrics, liveness, version and the live run report.
//
// Routes:
//
//	GET /metrics  Prometheus exposition of the pipeline instruments
//	GET /healthz  liveness and version
//	GET /version  build information
//	GET /status   current run report; a failed run answers with the mapped error status
package http
