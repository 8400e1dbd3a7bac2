// Package device defines the AV-over-IP fleet domain model for avoip-core.
//
// The fleet consists of encoder and decoder endpoints managed by a matrix
// controller. This package holds:
//
//   - Device: identity and descriptor data for a single endpoint
//   - Status: transient per-device signal attributes
//   - Assignment: decoder → encoder routing entries
//   - Event: asynchronous notifications emitted by the controller
//   - Client: the capability set the coordinator consumes from the
//     transport collaborator
//
// The package deliberately contains no I/O. Concrete transport bindings live
// under internal/bridges (the coordinator never talks to the controller
// directly), and the merged fleet view lives in internal/snapshot.
//
// # Thread Safety
//
// All types in this package are plain values. Copy them freely; none contain
// hidden shared state.
package device
