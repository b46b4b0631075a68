package serialization

import "errors"

// Sentinel errors for .peft file validation.
var (
	// ErrInvalidMagic is returned when a file does not start with "PEFT".
	ErrInvalidMagic = errors.New("not a .peft file: invalid magic bytes")

	// ErrUnsupportedVersion is returned for format versions this build
	// cannot read.
	ErrUnsupportedVersion = errors.New("unsupported .peft format version")

	// ErrChecksumMismatch is returned when the data section does not match
	// the checksum recorded in the header.
	ErrChecksumMismatch = errors.New("checksum mismatch: file is corrupted")

	// ErrHeaderTooLarge is returned when the declared header size exceeds
	// the sanity limit, before any allocation happens.
	ErrHeaderTooLarge = errors.New("header size exceeds limit")

	// ErrTensorNotFound is returned when a named tensor is missing from a
	// loaded state dict.
	ErrTensorNotFound = errors.New("tensor not found in state dict")
)
