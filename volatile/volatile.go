// Package volatile provides width-typed handles for memory-mapped register
// access. A handle pairs a raw address with a fixed access width and exposes
// exactly two operations, Load and Store, each of which performs a single
// access of that width against the address.
//
// Accesses are routed through functions the compiler may not inline, so a
// handle operation is never elided, duplicated, merged with, or reordered
// relative to any other handle operation issued by the same goroutine.
// Handle operations establish no happens-before relationship between
// goroutines; callers that share an address across goroutines must serialize
// access themselves.
//
// A handle never owns the memory it addresses. Construction does not validate
// the address: accessing an address that is not mapped, or not aligned to the
// access width, is undefined behavior and is not detected here. Handles expose
// no arithmetic; compute addresses externally (see Region) so that every
// register access is explicit at the call site.
package volatile

import "unsafe"

// Register8 is a handle performing 8-bit accesses at a fixed address.
type Register8 struct {
	addr uintptr
}

// Register16 is a handle performing 16-bit accesses at a fixed address.
// The address must be 2-byte aligned.
type Register16 struct {
	addr uintptr
}

// Register32 is a handle performing 32-bit accesses at a fixed address.
// The address must be 4-byte aligned.
type Register32 struct {
	addr uintptr
}

// NewRegister8 returns a handle for 8-bit accesses at addr.
func NewRegister8(addr uintptr) Register8 {
	return Register8{addr: addr}
}

// NewRegister16 returns a handle for 16-bit accesses at addr.
func NewRegister16(addr uintptr) Register16 {
	return Register16{addr: addr}
}

// NewRegister32 returns a handle for 32-bit accesses at addr.
func NewRegister32(addr uintptr) Register32 {
	return Register32{addr: addr}
}

func (r Register8) Addr() uintptr  { return r.addr }
func (r Register16) Addr() uintptr { return r.addr }
func (r Register32) Addr() uintptr { return r.addr }

// Load performs a single 8-bit read.
func (r Register8) Load() uint8 {
	return loadUint8((*uint8)(unsafe.Pointer(r.addr)))
}

// Store performs a single 8-bit write.
func (r Register8) Store(value uint8) {
	storeUint8((*uint8)(unsafe.Pointer(r.addr)), value)
}

// Load performs a single 16-bit read.
func (r Register16) Load() uint16 {
	return loadUint16((*uint16)(unsafe.Pointer(r.addr)))
}

// Store performs a single 16-bit write.
func (r Register16) Store(value uint16) {
	storeUint16((*uint16)(unsafe.Pointer(r.addr)), value)
}

// Load performs a single 32-bit read.
func (r Register32) Load() uint32 {
	return loadUint32((*uint32)(unsafe.Pointer(r.addr)))
}

// Store performs a single 32-bit write.
func (r Register32) Store(value uint32) {
	storeUint32((*uint32)(unsafe.Pointer(r.addr)), value)
}

//go:noinline
//go:nosplit
func loadUint8(addr *uint8) uint8 {
	return *addr
}

//go:noinline
//go:nosplit
func loadUint16(addr *uint16) uint16 {
	return *addr
}

//go:noinline
//go:nosplit
func loadUint32(addr *uint32) uint32 {
	return *addr
}

//go:noinline
//go:nosplit
func storeUint8(addr *uint8, value uint8) {
	*addr = value
}

//go:noinline
//go:nosplit
func storeUint16(addr *uint16, value uint16) {
	*addr = value
}

//go:noinline
//go:nosplit
func storeUint32(addr *uint32, value uint32) {
	*addr = value
}
