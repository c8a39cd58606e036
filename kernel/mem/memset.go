package mem

import (
	"reflect"
	"unsafe"
)

// Memset sets size bytes at addr to value. The first byte is stored directly
// and the filled prefix is then doubled with copy until the region is full.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := overlay(addr, size)
	target[0] = value
	for filled := Size(1); filled < size; filled *= 2 {
		copy(target[filled:], target[:filled])
	}
}

// Memcopy copies size bytes from src to dst. The regions must not overlap.
func Memcopy(src, dst uintptr, size Size) {
	if size == 0 {
		return
	}

	copy(overlay(dst, size), overlay(src, size))
}

// overlay returns a byte slice backed by the size bytes at addr.
func overlay(addr uintptr, size Size) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))
}
