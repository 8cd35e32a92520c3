package linkset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unsafe"
)

type deviceInfo struct {
	ID      uint32
	Base    uint64
	IRQ     uint8
	Enabled bool
}

func TestLayoutOf(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		ok      bool
	}{
		{"uint32", uint32(7), true},
		{"bool", true, true},
		{"float64", 3.5, true},
		{"array", [4]uint16{}, true},
		{"struct", deviceInfo{}, true},
		{"nested struct", struct {
			A deviceInfo
			B [2]uint32
		}{}, true},
		{"string", "hello", false},
		{"pointer", new(uint32), false},
		{"slice", []uint32{1}, false},
		{"map", map[string]int{}, false},
		{"struct with pointer field", struct{ P *uint32 }{}, false},
		{"struct with string field", struct{ Name string }{}, false},
		{"empty struct", struct{}{}, false},
		{"nil", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			layout, err := LayoutOf(tc.payload)
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if layout.Size <= 0 {
					t.Errorf("layout has size %d", layout.Size)
				}
			} else if err == nil {
				t.Errorf("expected %s to be rejected", tc.name)
			}
		})
	}
}

func TestLayoutMatchesUnsafe(t *testing.T) {
	layout, err := LayoutOf(deviceInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if layout.Size != int(unsafe.Sizeof(deviceInfo{})) {
		t.Errorf("size %d, expected %d", layout.Size, unsafe.Sizeof(deviceInfo{}))
	}
	if layout.Align != int(unsafe.Alignof(deviceInfo{})) {
		t.Errorf("align %d, expected %d", layout.Align, unsafe.Alignof(deviceInfo{}))
	}
}

func TestSetRoundTrip(t *testing.T) {
	set := NewSet(".device_table", true)
	devices := []deviceInfo{
		{ID: 1, Base: 0x40000000, IRQ: 9, Enabled: true},
		{ID: 2, Base: 0x40001000, IRQ: 10},
		{ID: 3, Base: 0x40002000, IRQ: 11, Enabled: true},
	}
	for _, d := range devices {
		if err := set.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	if set.Len() != len(devices) {
		t.Fatalf("set holds %d records, registered %d", set.Len(), len(devices))
	}
	if set.RecordSize() != int(unsafe.Sizeof(deviceInfo{})) {
		t.Errorf("record size %d", set.RecordSize())
	}
	if len(set.Bytes()) != set.Len()*set.RecordSize() {
		t.Errorf("section is %d bytes", len(set.Bytes()))
	}

	it := set.Enumerate()
	i := 0
	for it.Next() {
		var d deviceInfo
		if err := it.Decode(&d); err != nil {
			t.Fatal(err)
		}
		if d != devices[i] {
			t.Errorf("record %d decoded as %+v, want %+v", i, d, devices[i])
		}
		i++
	}
	if i != len(devices) {
		t.Errorf("iterator yielded %d records", i)
	}
}

func TestSetRejectsMixedTypes(t *testing.T) {
	set := NewSet(".device_table", false)
	if err := set.Register(deviceInfo{ID: 1}); err != nil {
		t.Fatal(err)
	}
	err := set.Register(uint32(2))
	if !errors.Is(err, ErrMixedPayloadTypes) {
		t.Errorf("expected ErrMixedPayloadTypes, got %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("failed registration still appended a record")
	}
}

func TestSetRejectsNonFixedPayload(t *testing.T) {
	set := NewSet(".device_table", false)
	err := set.Register(struct{ Name string }{Name: "uart0"})
	if !errors.Is(err, ErrNotFixedLayout) {
		t.Errorf("expected ErrNotFixedLayout, got %v", err)
	}
}

func TestEnumerateInProcess(t *testing.T) {
	// Simulate loader start/end symbols with the bounds of a backing array.
	records := [3]uint32{0x11112222, 0x33334444, 0x55556666}
	start := uintptr(unsafe.Pointer(&records[0]))
	end := start + unsafe.Sizeof(records)

	it, err := Enumerate(start, end, 4)
	if err != nil {
		t.Fatal(err)
	}
	if it.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", it.Len())
	}

	var got []uint32
	for it.Next() {
		var v uint32
		if err := it.Decode(&v); err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	for i, v := range got {
		if v != records[i] {
			t.Errorf("record %d is %#x, want %#x", i, v, records[i])
		}
	}

	// Restartable: a second pass yields the same sequence.
	it.Reset()
	count := 0
	for it.Next() {
		count++
	}
	if count != 3 {
		t.Errorf("second pass yielded %d records", count)
	}
}

func TestEnumerateEmptyBounds(t *testing.T) {
	it, err := Enumerate(0x1000, 0x1000, 8)
	if err != nil {
		t.Fatal(err)
	}
	if it.Next() {
		t.Error("empty range yielded a record")
	}
}

func TestEnumerateBadBounds(t *testing.T) {
	if _, err := Enumerate(0x2000, 0x1000, 8); err != ErrBadBounds {
		t.Errorf("expected ErrBadBounds, got %v", err)
	}
}

func TestEnumerateBytesValidation(t *testing.T) {
	if _, err := EnumerateBytes(make([]byte, 16), 0); err != ErrBadRecordSize {
		t.Errorf("expected ErrBadRecordSize, got %v", err)
	}
	if _, err := EnumerateBytes(make([]byte, 10), 4); err != ErrTruncatedSection {
		t.Errorf("expected ErrTruncatedSection, got %v", err)
	}
}

func TestDecodeValidation(t *testing.T) {
	it, err := EnumerateBytes([]byte{1, 2, 3, 4}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !it.Next() {
		t.Fatal("expected one record")
	}
	if err := it.Decode(uint32(0)); err != ErrDecodeTarget {
		t.Errorf("non-pointer target: got %v", err)
	}
	var wide uint64
	if err := it.Decode(&wide); err != ErrDecodeTarget {
		t.Errorf("size-mismatched target: got %v", err)
	}
	var narrow *uint32
	if err := it.Decode(narrow); err != ErrDecodeTarget {
		t.Errorf("nil pointer target: got %v", err)
	}
}

func TestPaddingBytesAreZero(t *testing.T) {
	type padded struct {
		A uint8
		B uint32
	}
	set := NewSet(".padded", false)
	if err := set.Register(padded{A: 0xff, B: 0xffffffff}); err != nil {
		t.Fatal(err)
	}
	data := set.Bytes()
	// Bytes 1..3 are struct padding and must be deterministically zero.
	if !bytes.Equal(data[1:4], []byte{0, 0, 0}) {
		t.Errorf("padding bytes not zeroed: % x", data)
	}
}

func TestSplitMachOSection(t *testing.T) {
	seg, name, ok := SplitMachOSection("__DATA,__device_table")
	if !ok || seg != "__DATA" || name != "__device_table" {
		t.Errorf("qualified spelling split as (%q, %q, %v)", seg, name, ok)
	}
	seg, name, ok = SplitMachOSection("__device_table")
	if ok || seg != "" || name != "__device_table" {
		t.Errorf("unqualified spelling split as (%q, %q, %v)", seg, name, ok)
	}
}

func TestReadSectionRejectsUnknownImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-object")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSection(path, ".anything"); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("expected ErrUnknownImage, got %v", err)
	}
}
