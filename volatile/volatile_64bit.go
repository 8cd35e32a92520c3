//go:build amd64 || arm64 || mips64 || mips64le || ppc64 || ppc64le || riscv64 || s390x || loong64

package volatile

import "unsafe"

// WordBits is the native word size of the target in bits. Register64 exists
// only on targets where this is 64.
const WordBits = 64

// Register64 is a handle performing 64-bit accesses at a fixed address.
// The address must be 8-byte aligned.
type Register64 struct {
	addr uintptr
}

// NewRegister64 returns a handle for 64-bit accesses at addr.
func NewRegister64(addr uintptr) Register64 {
	return Register64{addr: addr}
}

func (r Register64) Addr() uintptr { return r.addr }

// Load performs a single 64-bit read.
func (r Register64) Load() uint64 {
	return loadUint64((*uint64)(unsafe.Pointer(r.addr)))
}

// Store performs a single 64-bit write.
func (r Register64) Store(value uint64) {
	storeUint64((*uint64)(unsafe.Pointer(r.addr)), value)
}

//go:noinline
//go:nosplit
func loadUint64(addr *uint64) uint64 {
	return *addr
}

//go:noinline
//go:nosplit
func storeUint64(addr *uint64, value uint64) {
	*addr = value
}
