// Package auth provides authentication for the AV-over-IP core API.
//
// It implements a 2-tier role model (viewer → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Short-lived JWT access tokens validated by signature only
//   - Static role checks (compile-time, no database lookup)
//
// The admin account is configured, not stored: config.yaml carries the
// username and an Argon2id PHC hash of the password. Login verifies the
// hash and issues an admin token. Viewer tokens grant read-only access
// to the snapshot API and WebSocket feed.
package auth
