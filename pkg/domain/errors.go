package domain

import "errors"

// Sentinel errors classifying every failure the document model can surface.
// Callers branch with errors.Is; individual sites wrap these with %w and a
// message naming the operation that failed.
var (
	// ErrFileNotFound reports a missing project file or audio source.
	ErrFileNotFound = errors.New("file not found")
	// ErrPermissionDenied reports insufficient filesystem permissions.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSystemResources reports exhaustion of descriptors, entropy, or
	// similar operating system resources.
	ErrSystemResources = errors.New("system resources exhausted")
	// ErrOutOfMemory reports an allocation failure surfaced by a collaborator.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrCorruption reports a malformed or inconsistent log record, such as a
	// truncated command payload, a bad revision sequence, or a dangling id.
	ErrCorruption = errors.New("project data corrupt")
	// ErrUnimplemented reports an unsupported filesystem or backend feature.
	ErrUnimplemented = errors.New("unimplemented")
	// ErrInvalidArgument reports caller input that violates an invariant,
	// like a segment whose start exceeds its end.
	ErrInvalidArgument = errors.New("invalid argument")
)
