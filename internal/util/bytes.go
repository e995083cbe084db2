package util

import "github.com/awnumar/memguard"

// WipeBytes best-effort zeroes the provided byte slice in place.
func WipeBytes(b []byte) {
	memguard.WipeBytes(b)
}
