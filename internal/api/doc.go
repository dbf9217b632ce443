// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic device catalog.
//
// This package provides:
//   - Read-only REST endpoints for the device corpus, canonical data points,
//     catalog sources, fusion history and update reports
//   - An endpoint that triggers an update cycle
//   - A WebSocket hub that relays update reports to driver tooling
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server sits between driver-generation tooling and the catalog
// engine. Update cycles run in the update package; every finished report is
// handed to the hub (see Hub.NotifyReport), which broadcasts it on the
// "catalog.report" channel and once per source on "catalog.source".
//
// # Graceful Degradation
//
// The update trigger and report history are optional. Without them the
// server still answers every read-only endpoint and returns 503 for the
// missing features.
package api
