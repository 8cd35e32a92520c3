package linkset

import (
	"reflect"
	"unsafe"
)

// Iter walks a section's bytes as a sequence of equally sized records in link
// order. It is lazy, finite, and restartable via Reset.
type Iter struct {
	data []byte
	size int
	off  int
	cur  []byte
}

// Enumerate interprets the half-open address range [start, end) of the loaded
// image as a run of recordSize-byte records. The bounds are typically the
// start and end symbols the linker places around a section. The caller
// attests that the range is mapped and outlives the iterator.
func Enumerate(start, end uintptr, recordSize int) (*Iter, error) {
	if end < start {
		return nil, ErrBadBounds
	}
	if start == end {
		return EnumerateBytes(nil, recordSize)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(start)), end-start)
	return EnumerateBytes(data, recordSize)
}

// EnumerateBytes walks raw section contents already in hand, for example read
// out of a binary on disk.
func EnumerateBytes(data []byte, recordSize int) (*Iter, error) {
	if recordSize <= 0 {
		return nil, ErrBadRecordSize
	}
	if len(data)%recordSize != 0 {
		return nil, ErrTruncatedSection
	}
	return &Iter{data: data, size: recordSize}, nil
}

// Len returns the total number of records.
func (it *Iter) Len() int {
	if it.size == 0 {
		return 0
	}
	return len(it.data) / it.size
}

// Next advances to the next record, returning false when the section is
// exhausted.
func (it *Iter) Next() bool {
	if it.size == 0 || it.off+it.size > len(it.data) {
		it.cur = nil
		return false
	}
	it.cur = it.data[it.off : it.off+it.size]
	it.off += it.size
	return true
}

// Record returns the raw bytes of the current record. Valid until the next
// call to Next or Reset.
func (it *Iter) Record() []byte {
	return it.cur
}

// Decode copies the current record into out, which must be a non-nil pointer
// to a type matching the record size.
func (it *Iter) Decode(out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrDecodeTarget
	}
	t := v.Type().Elem()
	if int(t.Size()) != it.size {
		return ErrDecodeTarget
	}
	dst := unsafe.Slice((*byte)(v.UnsafePointer()), it.size)
	copy(dst, it.cur)
	return nil
}

// Reset restarts the iteration from the first record.
func (it *Iter) Reset() {
	it.off = 0
	it.cur = nil
}
