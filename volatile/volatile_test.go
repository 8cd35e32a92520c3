package volatile

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestRoundTrip8(t *testing.T) {
	var cell uint8
	reg := NewRegister8(uintptr(unsafe.Pointer(&cell)))
	for _, value := range []uint8{0, 1, 0x7f, 0x80, 0xff} {
		reg.Store(value)
		if got := reg.Load(); got != value {
			t.Errorf("stored %#x, loaded %#x", value, got)
		}
	}
	runtime.KeepAlive(&cell)
}

func TestRoundTrip16(t *testing.T) {
	var cell uint16
	reg := NewRegister16(uintptr(unsafe.Pointer(&cell)))
	for _, value := range []uint16{0, 1, 0xff, 0x100, 0x7fff, 0xffff} {
		reg.Store(value)
		if got := reg.Load(); got != value {
			t.Errorf("stored %#x, loaded %#x", value, got)
		}
	}
	runtime.KeepAlive(&cell)
}

func TestRoundTrip32(t *testing.T) {
	var cell uint32
	reg := NewRegister32(uintptr(unsafe.Pointer(&cell)))
	for _, value := range []uint32{0, 1, 0xffff, 0x10000, 0xdeadbeef, 0xffffffff} {
		reg.Store(value)
		if got := reg.Load(); got != value {
			t.Errorf("stored %#x, loaded %#x", value, got)
		}
	}
	runtime.KeepAlive(&cell)
}

func TestStoreWidth(t *testing.T) {
	// A store through a narrow handle must not touch neighboring bytes.
	var cells [4]uint8
	for i := range cells {
		cells[i] = 0xaa
	}
	reg := NewRegister8(uintptr(unsafe.Pointer(&cells[1])))
	reg.Store(0x55)
	if cells[0] != 0xaa || cells[2] != 0xaa || cells[3] != 0xaa {
		t.Errorf("8-bit store spilled into neighbors: % x", cells)
	}
	if cells[1] != 0x55 {
		t.Errorf("8-bit store missed its cell: % x", cells)
	}
	runtime.KeepAlive(&cells)
}

func TestProgramOrder(t *testing.T) {
	// Two stores issued in program order must leave the later value.
	var cell uint32
	reg := NewRegister32(uintptr(unsafe.Pointer(&cell)))
	reg.Store(1)
	reg.Store(2)
	if got := reg.Load(); got != 2 {
		t.Errorf("expected last store to win, loaded %#x", got)
	}
	runtime.KeepAlive(&cell)
}

func TestMisalignedAddressPreserved(t *testing.T) {
	// Construction never validates alignment. A misaligned handle keeps its
	// address verbatim; using it is the caller's undefined behavior.
	var cells [8]uint8
	base := uintptr(unsafe.Pointer(&cells[0]))
	misaligned := base | 1

	reg16 := NewRegister16(misaligned)
	if reg16.Addr() != misaligned {
		t.Errorf("16-bit handle rewrote address: %#x != %#x", reg16.Addr(), misaligned)
	}
	reg32 := NewRegister32(misaligned)
	if reg32.Addr() != misaligned {
		t.Errorf("32-bit handle rewrote address: %#x != %#x", reg32.Addr(), misaligned)
	}
	runtime.KeepAlive(&cells)
}

func TestWordBits(t *testing.T) {
	if WordBits != 32 && WordBits != 64 {
		t.Fatalf("unexpected word size %d", WordBits)
	}
	if WordBits == 64 && unsafe.Sizeof(uintptr(0)) != 8 {
		t.Errorf("WordBits is 64 on a %d-bit target", unsafe.Sizeof(uintptr(0))*8)
	}
}
