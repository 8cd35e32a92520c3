//go:build linux

package volatile

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	ErrRegionSize   = errors.New("region size must be positive")
	ErrRegionBounds = errors.New("register outside mapped region")
)

// Region is a mapped window of physical or file-backed memory used to derive
// register handles. It exists so that address computation stays outside the
// handles themselves. The usual source is /dev/mem on a system exposing
// memory-mapped peripherals, or an ordinary file for tests.
type Region struct {
	mem  []byte
	base uintptr
}

// MapRegion maps size bytes of the named file starting at offset. The offset
// must satisfy the platform's mmap alignment requirements.
func MapRegion(path string, offset int64, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrRegionSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &Region{
		mem:  mem,
		base: uintptr(unsafe.Pointer(&mem[0])),
	}, nil
}

// Close unmaps the region. Handles derived from it must not be used afterward.
func (m *Region) Close() error {
	mem := m.mem
	m.mem = nil
	m.base = 0
	return unix.Munmap(mem)
}

// Base returns the address the region is mapped at.
func (m *Region) Base() uintptr {
	return m.base
}

// Size returns the mapped length in bytes.
func (m *Region) Size() int {
	return len(m.mem)
}

// Reg8 returns an 8-bit handle at the given offset into the region.
func (m *Region) Reg8(offset uintptr) Register8 {
	return NewRegister8(m.addr(offset, 1))
}

// Reg16 returns a 16-bit handle at the given offset into the region.
func (m *Region) Reg16(offset uintptr) Register16 {
	return NewRegister16(m.addr(offset, 2))
}

// Reg32 returns a 32-bit handle at the given offset into the region.
func (m *Region) Reg32(offset uintptr) Register32 {
	return NewRegister32(m.addr(offset, 4))
}

func (m *Region) addr(offset, width uintptr) uintptr {
	if offset+width > uintptr(len(m.mem)) {
		panic(ErrRegionBounds)
	}
	return m.base + offset
}
