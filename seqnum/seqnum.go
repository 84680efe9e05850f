// Package seqnum defines the types and arithmetic for TCP sequence numbers,
// which wrap modulo 2^32 and therefore cannot be compared with plain
// relational operators
package seqnum

// Value represents the value of a sequence number
type Value uint32

// Size represents the size of a sequence number window
type Size uint32

// SizeFromValue converts a Value to a Size, e.g. for computing the number of
// bytes represented by a range of sequence numbers
func SizeFromValue(v Value) Size {
	return Size(v)
}

// Add returns v + delta, wrapping as necessary
func (v Value) Add(delta Size) Value {
	return v + Value(delta)
}

// Size returns the number of sequence numbers from v to the given value, not
// including the given value; i.e. it returns v2 - v
func (v Value) Size(v2 Value) Size {
	return Size(v2 - v)
}

// LessThan checks if v is before a, in other words, if v occurs before a in
// the sequence number space; it is the sequence-number-safe version of v < a
func (v Value) LessThan(a Value) bool {
	return int32(v-a) < 0
}

// LessThanEq is equivalent to v == a || v.LessThan(a)
func (v Value) LessThanEq(a Value) bool {
	if v == a {
		return true
	}
	return v.LessThan(a)
}

// InRange checks if v is in the range [a, b), i.e. a <= v < b, in
// sequence-number space
func (v Value) InRange(a, b Value) bool {
	return v-a < b-a
}

// InWindow checks if v is in the window that starts at first and spans size
// sequence numbers
func (v Value) InWindow(first Value, size Size) bool {
	return v.InRange(first, first.Add(size))
}
