package gpu

import "unsafe"

// Bytes views a slice of plain-old-data values as raw bytes without copying.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(s[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*size)
}

// Cast views raw bytes as a slice of T. Trailing bytes that do not fill a whole T are dropped.
func Cast[T any](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// SizeOf returns the byte size of one T.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
