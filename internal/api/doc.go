// Package api implements the HTTP REST API and WebSocket server for the
// AV-over-IP core.
//
// This package provides:
//   - REST endpoints for snapshot reads, refresh, matrix routing, and
//     display power commands
//   - WebSocket hub broadcasting section-change events in real time
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between entity collaborators (control UIs, wall
// panels, automation systems) and the refresh coordinator. Reads are served
// straight from the in-memory snapshot and never block on the controller.
// Commands are validated and forwarded by the coordinator, which decides
// what to refresh afterwards.
//
// # Security
//
// Authentication uses short-lived JWT tokens issued against the configured
// admin credential. WebSocket connections use single-use tickets to prevent
// token leakage in URLs. Mutating endpoints require the admin role.
package api
