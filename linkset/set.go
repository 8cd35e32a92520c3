package linkset

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Set collects records destined for one named section. The section spelling
// is target-object-format specific and is carried verbatim: ELF sections are
// flat names such as ".device_table", Mach-O sections are spelled
// "__SEGMENT,__section". Records are kept in registration order, which
// becomes link order when the set is emitted into an object file.
//
// Used marks the section for retention through linker dead-stripping, which
// linker-set sections normally need since nothing references them statically.
type Set struct {
	Section string
	Used    bool

	layout Layout
	data   []byte
	count  int
}

// NewSet returns an empty set for the given section spelling.
func NewSet(section string, used bool) *Set {
	return &Set{Section: section, Used: used}
}

// Register appends payload as a record. The first registration fixes the
// set's payload type; later registrations must use the identical type so the
// section stays homogeneous.
func (s *Set) Register(payload any) error {
	layout, err := LayoutOf(payload)
	if err != nil {
		return err
	}
	if s.count == 0 {
		s.layout = layout
	} else if layout.Type != s.layout.Type {
		return fmt.Errorf("%w: have %s, got %s", ErrMixedPayloadTypes, s.layout.Type, layout.Type)
	}

	s.data = append(s.data, encode(payload, layout)...)
	s.count++
	return nil
}

// Len returns the number of registered records.
func (s *Set) Len() int {
	return s.count
}

// RecordSize returns the size in bytes of one record, or zero for an empty set.
func (s *Set) RecordSize() int {
	if s.count == 0 {
		return 0
	}
	return s.layout.Size
}

// Align returns the required alignment of the section, or 1 for an empty set.
func (s *Set) Align() int {
	if s.count == 0 {
		return 1
	}
	return s.layout.Align
}

// Bytes returns the section contents: all records back to back in
// registration order. The returned slice aliases the set's storage.
func (s *Set) Bytes() []byte {
	return s.data
}

// Enumerate returns an iterator over the set's own records. This is the
// in-memory equivalent of walking the emitted section.
func (s *Set) Enumerate() *Iter {
	size := s.RecordSize()
	if size == 0 {
		return &Iter{}
	}
	return &Iter{data: s.data, size: size}
}

// encode copies the payload's storage, including padding, into a fresh byte
// slice. Copying out of a zeroed allocation keeps padding bytes deterministic.
func encode(payload any, layout Layout) []byte {
	v := reflect.New(layout.Type).Elem()
	v.Set(reflect.ValueOf(payload))
	src := unsafe.Slice((*byte)(v.Addr().UnsafePointer()), layout.Size)
	out := make([]byte, layout.Size)
	copy(out, src)
	return out
}
