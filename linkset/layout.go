// Package linkset assembles fixed-layout records into named linker sections
// and enumerates them back out, either from a loaded image or from a binary
// on disk.
//
// A record's payload must have a layout computable without running code:
// scalars, arrays of scalars, and structs built only from such fields. Types
// carrying indirection (pointers, slices, maps, strings, channels, functions,
// interfaces) are rejected, since their storage cannot be embedded in a
// section as a self-contained run of bytes.
//
// All records sharing a section are expected to be homogeneous; enumeration
// walks the section as a sequence of equally sized records in link order.
// Link order is stable within one image but not across separate builds.
package linkset

import (
	"fmt"
	"reflect"
)

// Layout describes the in-memory shape of a payload type.
type Layout struct {
	Type  reflect.Type
	Size  int
	Align int
}

// LayoutOf computes the layout of payload's type, or fails if the type is not
// fixed and self-contained.
func LayoutOf(payload any) (Layout, error) {
	t := reflect.TypeOf(payload)
	if t == nil {
		return Layout{}, fmt.Errorf("%w: untyped nil", ErrNotFixedLayout)
	}
	if err := checkFixedLayout(t, ""); err != nil {
		return Layout{}, err
	}
	if t.Size() == 0 {
		return Layout{}, fmt.Errorf("%w: %s", ErrZeroSizedPayload, t)
	}
	return Layout{Type: t, Size: int(t.Size()), Align: t.Align()}, nil
}

func checkFixedLayout(t reflect.Type, path string) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkFixedLayout(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if err := checkFixedLayout(field.Type, path+"."+field.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		if path == "" {
			return fmt.Errorf("%w: %s is a %s", ErrNotFixedLayout, t, t.Kind())
		}
		return fmt.Errorf("%w: field %s of %s is a %s", ErrNotFixedLayout, path, t, t.Kind())
	}
}
