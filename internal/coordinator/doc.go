// Package coordinator turns the slow, partially observable AV fleet into a
// consistent, cache-aware snapshot with minimal controller round-trips.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                           Coordinator                              │
//	│                                                                    │
//	│  ┌────────────┐      ┌──────────────┐      ┌───────────────────┐   │
//	│  │    Poll    │      │ Notification │      │   Refresh Engine  │   │
//	│  │ Scheduler  │─────▶│  Dispatcher  │─────▶│    (engine.go)    │   │
//	│  │(scheduler) │ full │ (dispatcher) │ sel. │                   │   │
//	│  └────────────┘      └──────────────┘      │ • single-flight   │   │
//	│                                            │   per section     │   │
//	│                                            │ • descriptor TTL  │   │
//	│                                            │   cache           │   │
//	│                                            │ • partial-failure │   │
//	│                                            │   isolation       │   │
//	│                                            └─────────┬─────────┘   │
//	└──────────────────────────────────────────────────────│─────────────┘
//	                                                       ▼
//	                                             internal/snapshot.Store
//
// The Refresh Engine is the only component that talks to the device API.
// It enforces at-most-one-fetch-in-flight per section: a refresh requested
// while the same section is already fetching joins the outstanding fetch
// instead of issuing a second API call. Different sections refresh
// concurrently.
//
// The Notification Dispatcher maps asynchronous controller events onto the
// minimal section set through a static table and coalesces bursts inside a
// debounce window, so a controller reboot that drops thirty endpoints at
// once produces one refresh, not thirty.
//
// The Poll Scheduler drives periodic full refreshes with bounded exponential
// backoff on failure; the last good snapshot keeps serving readers
// throughout.
//
// # Refresh policy after commands
//
//   - Matrix routing change: only matrix_assignments is refreshed. Routing
//     cannot change descriptors or online-ness.
//   - Display power command: no refresh at all. Display power is not part
//     of any monitored section, so nothing goes stale.
package coordinator
