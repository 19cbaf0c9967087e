package filter

import "errors"

// Common filter errors.
var (
	// ErrUnsupportedType indicates a value that has no JSON representation.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedKey indicates a map whose key type cannot become a member name.
	ErrUnsupportedKey = errors.New("unsupported map key type")

	// ErrMaxDepth indicates a value nested deeper than the encoder allows,
	// typically a cycle.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")

	// ErrTransformFailed indicates a transformed member whose intermediate
	// value could not be decoded or re-encoded.
	ErrTransformFailed = errors.New("transformation failed")
)
