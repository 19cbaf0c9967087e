// Package filter renders values as JSON under a fields selection.
//
// The encoder walks the value and the *fields.Fields tree together: every
// object member is tested against the active node, omitted when not
// selected, and otherwise written with the member's child node active.
// Members carrying transformations are rendered to an intermediate ordered
// value first, transformed, and then written.
//
//	data, err := filter.Marshal(obj, f)
//
// An Encoder is bound to one traversal at a time and is not safe for
// concurrent use. The *fields.Fields tree itself may be shared freely.
package filter
