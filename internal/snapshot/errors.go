package snapshot

import "errors"

// Domain errors for the snapshot package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDataIntegrity is returned when fetched data violates a snapshot
	// invariant (e.g. a decoder routed to two encoders at once). The apply
	// is rejected and the prior section value is retained.
	ErrDataIntegrity = errors.New("snapshot: data integrity violation")

	// ErrUnknownSection is returned when a section name is not recognised.
	ErrUnknownSection = errors.New("snapshot: unknown section")

	// ErrSectionNotPersisted is returned when restoring a section that has
	// no persisted row.
	ErrSectionNotPersisted = errors.New("snapshot: section not persisted")
)
