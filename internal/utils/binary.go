package utils

import "bytes"

// IsBinary reports whether the provided byte slice contains a NUL byte.
// Text that is merely not valid UTF-8 is not considered binary.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
