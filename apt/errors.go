package apt

import "errors"

// Error kinds surfaced by Download. Every failure is terminal for the
// current call; callers match with errors.Is to decide whether to abort or
// report and continue.
var (
	// ErrInvalidSpec reports a repository specification line that cannot be
	// decomposed into URI, distribution and components, or an empty
	// architecture list.
	ErrInvalidSpec = errors.New("invalid repository specification")

	// ErrUnreachable reports a failed mandatory fetch. Optional fetches
	// (InRelease, or Release.gpg without a configured key) degrade to the
	// next path instead.
	ErrUnreachable = errors.New("repository unreachable")

	// ErrSignature reports that the Release metadata could not be
	// authenticated against the configured repository key.
	ErrSignature = errors.New("signature verification failed")

	// ErrNoChecksums reports Release metadata carrying neither a SHA512 nor
	// a SHA256 section, or a package entry without a recognized checksum
	// field.
	ErrNoChecksums = errors.New("no usable checksum found")

	// ErrChecksumMismatch reports a fetched file whose digest does not match
	// the recorded one. A corrupt index or payload is never skipped.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPackageNotFound reports that no index file of any
	// component/architecture/compression candidate contains the requested
	// package.
	ErrPackageNotFound = errors.New("package not found")
)
