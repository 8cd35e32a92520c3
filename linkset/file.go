package linkset

import (
	"debug/elf"
	"debug/macho"
	"fmt"
	"strings"
)

// EnumerateFile reads the named section out of a binary on disk and walks its
// records, without loading or running the image. ELF and Mach-O images are
// supported; the section spelling follows the image's own convention (flat
// ".name" for ELF, "__SEGMENT,__section" for Mach-O).
func EnumerateFile(path, section string, recordSize int) (*Iter, error) {
	data, err := ReadSection(path, section)
	if err != nil {
		return nil, err
	}
	return EnumerateBytes(data, recordSize)
}

// ReadSection returns the raw contents of the named section of an ELF or
// Mach-O binary.
func ReadSection(path, section string) ([]byte, error) {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return readELFSection(f, section)
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		return readMachOSection(f, section)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownImage, path)
}

func readELFSection(f *elf.File, section string) ([]byte, error) {
	s := f.Section(section)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	return s.Data()
}

func readMachOSection(f *macho.File, section string) ([]byte, error) {
	segment, name, qualified := SplitMachOSection(section)
	for _, s := range f.Sections {
		if s.Name != name {
			continue
		}
		if qualified && s.Seg != segment {
			continue
		}
		data := make([]byte, s.Size)
		if _, err := s.ReadAt(data, 0); err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, section)
}

// SplitMachOSection splits a "__SEGMENT,__section" spelling into its parts.
// The reported bool is false for an unqualified (segment-less) spelling, in
// which case segment is empty and name holds the whole input.
func SplitMachOSection(spelling string) (segment, name string, ok bool) {
	segment, name, ok = strings.Cut(spelling, ",")
	if !ok {
		return "", spelling, false
	}
	return segment, name, true
}
