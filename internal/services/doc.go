// Package services implements the business logic layer of geodash. It sits
// between the HTTP handlers and the preparation pipeline and owns the
// session lifecycle.
//
// # Available Services
//
//	- DatasetService: uploads, pipeline runs, dataset and chart feeds
//	- HealthService: liveness, readiness and version information
//
// # Upload flow
//
// An upload is decoded, run through the pipeline and, only on success,
// stored as the session's new result. A failed upload leaves the previous
// result in place. Either outcome is published to the session's WebSocket
// clients as a dataset:ready or dataset:error event.
//
// # Error Handling
//
// Services return the sentinels in errors.go or a *dataprocessing.PipelineError.
// Handlers translate both into RFC 7807 problem responses.
package services
