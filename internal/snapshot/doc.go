// Package snapshot holds the coordinator's merged view of the AV fleet.
//
// The view is split into three independently refreshable sections:
//
//   - devices: endpoint descriptors (identity, role, address, online flag)
//   - device_status: transient signal attributes per endpoint
//   - matrix_assignments: decoder → encoder routing
//
// Each section carries its own version and timestamp. A section is only ever
// replaced atomically: readers always observe a section that came from a
// single fetch cycle, never a mix of two overlapping cycles.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                      Snapshot Store                       │
//	│                                                           │
//	│  ┌───────────────┐   ┌────────────────┐   ┌────────────┐  │
//	│  │     Store     │   │   Repository   │   │  Snapshot  │  │
//	│  │  (store.go)   │──▶│(repository.go) │   │ (types.go) │  │
//	│  │               │   │                │   │            │  │
//	│  │ • Apply/merge │   │ • SQLite rows  │   │ • Immutable│  │
//	│  │ • Versioning  │   │ • JSON payload │   │ • Per-sect │  │
//	│  │ • Subscribers │   │ • Warm restart │   │   versions │  │
//	│  └───────────────┘   └────────────────┘   └────────────┘  │
//	└───────────────────────────────────────────────────────────┘
//
// Reads are lock-free: Read returns a pointer to an immutable Snapshot via
// atomic.Pointer, and every Apply publishes a fresh copy-on-write snapshot.
// Callers must treat the returned Snapshot as read-only.
//
// The Repository persists the latest payload per section so a restarted
// coordinator can serve a stale-but-valid view before its first refresh
// completes. Only the latest state is kept; there is no history.
package snapshot
