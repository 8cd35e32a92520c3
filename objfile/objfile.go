// Package objfile writes relocatable ELF objects carrying linker-set
// sections. Each registered record becomes a sized data symbol inside the
// named section; linking the object into a program places the records back
// to back in link order. When the set is marked used, the section carries
// SHF_GNU_RETAIN so --gc-sections keeps it despite the absence of static
// references.
//
// Section names that are valid C identifiers additionally get automatic
// __start_<name>/__stop_<name> bounds symbols from the linker, which is the
// usual way a program hands the section bounds to linkset.Enumerate.
package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"omibyte.io/hwio/linkset"
)

var (
	ErrEmptySet     = errors.New("cannot emit an object for an empty set")
	ErrUnknownClass = errors.New("unsupported ELF class")
)

// SHF_GNU_RETAIN lives in the OS-specific flag range and has no constant in
// debug/elf.
const shfGNURetain = 0x200000

// Options selects the object flavor to emit. The zero value produces a
// little-endian ELF64 object with no machine type, which generic tools accept
// but target linkers may reject; set Machine and Class from the target.
type Options struct {
	Machine elf.Machine
	Class   elf.Class // defaults to ELFCLASS64
	Order   binary.ByteOrder

	// SymbolPrefix names the per-record symbols <prefix>.0, <prefix>.1, ...
	// Defaults to "lset".
	SymbolPrefix string
}

// Raw describes a pre-encoded section for callers that assemble record bytes
// themselves, for example tooling emitting for a target whose byte order
// differs from the host's.
type Raw struct {
	Section    string
	Used       bool
	Data       []byte
	RecordSize int
	Align      int
}

// WriteFile emits the set as a relocatable object at path.
func WriteFile(path string, set *linkset.Set, opts Options) error {
	var buf bytes.Buffer
	if err := Write(&buf, set, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Write emits the set as a relocatable object.
func Write(w io.Writer, set *linkset.Set, opts Options) error {
	return WriteRaw(w, Raw{
		Section:    set.Section,
		Used:       set.Used,
		Data:       set.Bytes(),
		RecordSize: set.RecordSize(),
		Align:      set.Align(),
	}, opts)
}

// WriteRawFile emits the raw section as a relocatable object at path.
func WriteRawFile(path string, raw Raw, opts Options) error {
	var buf bytes.Buffer
	if err := WriteRaw(&buf, raw, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteRaw emits the raw section as a relocatable object.
func WriteRaw(w io.Writer, raw Raw, opts Options) error {
	if raw.RecordSize <= 0 || len(raw.Data) == 0 {
		return ErrEmptySet
	}
	if opts.Class == elf.ELFCLASSNONE {
		opts.Class = elf.ELFCLASS64
	}
	if opts.Order == nil {
		opts.Order = binary.LittleEndian
	}
	if opts.SymbolPrefix == "" {
		opts.SymbolPrefix = "lset"
	}

	b := &builder{opts: opts}
	b.addSections(raw)

	switch opts.Class {
	case elf.ELFCLASS64:
		return b.write64(w)
	case elf.ELFCLASS32:
		return b.write32(w)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownClass, opts.Class)
	}
}

type section struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	data    []byte
	align   uint64
	entsize uint64
	link    uint32
	info    uint32
}

type symbol struct {
	name    string
	value   uint64
	size    uint64
	info    uint8
	section uint16
}

type builder struct {
	opts     Options
	sections []section
	symbols  []symbol
}

// Section indices are fixed: 0 NULL, 1 payload, 2 .symtab, 3 .strtab,
// 4 .shstrtab.
const (
	payloadIndex  = 1
	symtabIndex   = 2
	strtabIndex   = 3
	shstrtabIndex = 4
)

func (b *builder) addSections(raw Raw) {
	flags := elf.SHF_ALLOC | elf.SHF_WRITE
	if raw.Used {
		flags |= shfGNURetain
	}

	b.symbols = append(b.symbols, symbol{}) // STN_UNDEF
	recordSize := uint64(raw.RecordSize)
	for i := 0; i < len(raw.Data)/raw.RecordSize; i++ {
		b.symbols = append(b.symbols, symbol{
			name:    fmt.Sprintf("%s.%d", b.opts.SymbolPrefix, i),
			value:   uint64(i) * recordSize,
			size:    recordSize,
			info:    uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_OBJECT),
			section: payloadIndex,
		})
	}

	align := raw.Align
	if align < 1 {
		align = 1
	}

	symtab, strtab := b.buildSymtab()

	b.sections = []section{
		{}, // SHT_NULL
		{
			name:    raw.Section,
			typ:     elf.SHT_PROGBITS,
			flags:   flags,
			data:    raw.Data,
			align:   uint64(align),
			entsize: recordSize,
		},
		{
			name:    ".symtab",
			typ:     elf.SHT_SYMTAB,
			data:    symtab,
			align:   8,
			entsize: b.symSize(),
			link:    strtabIndex,
			info:    1, // first global symbol
		},
		{
			name:  ".strtab",
			typ:   elf.SHT_STRTAB,
			data:  strtab,
			align: 1,
		},
		{
			name:  ".shstrtab",
			typ:   elf.SHT_STRTAB,
			data:  b.buildShstrtab(raw.Section),
			align: 1,
		},
	}
}

func (b *builder) symSize() uint64 {
	if b.opts.Class == elf.ELFCLASS32 {
		return 16
	}
	return 24
}

func (b *builder) buildSymtab() (symtab, strtab []byte) {
	names := stringTable{}
	var buf bytes.Buffer
	for _, sym := range b.symbols {
		nameOff := names.add(sym.name)
		if b.opts.Class == elf.ELFCLASS32 {
			binary.Write(&buf, b.opts.Order, elf.Sym32{
				Name:  nameOff,
				Value: uint32(sym.value),
				Size:  uint32(sym.size),
				Info:  sym.info,
				Shndx: sym.section,
			})
		} else {
			binary.Write(&buf, b.opts.Order, elf.Sym64{
				Name:  nameOff,
				Info:  sym.info,
				Shndx: sym.section,
				Value: sym.value,
				Size:  sym.size,
			})
		}
	}
	return buf.Bytes(), names.bytes()
}

func (b *builder) buildShstrtab(payloadName string) []byte {
	names := stringTable{}
	names.add(payloadName)
	names.add(".symtab")
	names.add(".strtab")
	names.add(".shstrtab")
	return names.bytes()
}

// stringTable builds an ELF string table: a NUL byte followed by
// NUL-terminated strings.
type stringTable struct {
	data    []byte
	offsets map[string]uint32
}

func (t *stringTable) add(s string) uint32 {
	if s == "" {
		return 0
	}
	if t.offsets == nil {
		t.offsets = map[string]uint32{}
		t.data = []byte{0}
	}
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := uint32(len(t.data))
	t.offsets[s] = off
	t.data = append(t.data, s...)
	t.data = append(t.data, 0)
	return off
}

func (t *stringTable) bytes() []byte {
	if t.data == nil {
		return []byte{0}
	}
	return t.data
}

func align(offset, alignment uint64) uint64 {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

func (b *builder) data() elf.Data {
	if b.opts.Order == binary.BigEndian {
		return elf.ELFDATA2MSB
	}
	return elf.ELFDATA2LSB
}

func (b *builder) write64(w io.Writer) error {
	const ehdrSize = 64
	const shdrSize = 64

	// Lay out section data after the header, section header table last.
	offsets := make([]uint64, len(b.sections))
	offset := uint64(ehdrSize)
	for i, s := range b.sections {
		if s.typ == elf.SHT_NULL {
			continue
		}
		offset = align(offset, s.align)
		offsets[i] = offset
		offset += uint64(len(s.data))
	}
	shoff := align(offset, 8)

	var buf bytes.Buffer
	ident := [elf.EI_NIDENT]byte{}
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(b.data())
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	binary.Write(&buf, b.opts.Order, elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(b.opts.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    ehdrSize,
		Shentsize: shdrSize,
		Shnum:     uint16(len(b.sections)),
		Shstrndx:  shstrtabIndex,
	})

	for i, s := range b.sections {
		if s.typ == elf.SHT_NULL {
			continue
		}
		if pad := offsets[i] - uint64(buf.Len()); pad > 0 {
			buf.Write(make([]byte, pad))
		}
		buf.Write(s.data)
	}

	if pad := shoff - uint64(buf.Len()); pad > 0 {
		buf.Write(make([]byte, pad))
	}

	shstr := stringTable{}
	for i, s := range b.sections {
		nameOff := shstr.add(s.name)
		shdr := elf.Section64{
			Name:      nameOff,
			Type:      uint32(s.typ),
			Flags:     uint64(s.flags),
			Size:      uint64(len(s.data)),
			Link:      s.link,
			Info:      s.info,
			Addralign: s.align,
			Entsize:   s.entsize,
		}
		if s.typ != elf.SHT_NULL {
			shdr.Off = offsets[i]
		}
		binary.Write(&buf, b.opts.Order, shdr)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func (b *builder) write32(w io.Writer) error {
	const ehdrSize = 52
	const shdrSize = 40

	offsets := make([]uint64, len(b.sections))
	offset := uint64(ehdrSize)
	for i, s := range b.sections {
		if s.typ == elf.SHT_NULL {
			continue
		}
		offset = align(offset, s.align)
		offsets[i] = offset
		offset += uint64(len(s.data))
	}
	shoff := align(offset, 4)

	var buf bytes.Buffer
	ident := [elf.EI_NIDENT]byte{}
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(b.data())
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	binary.Write(&buf, b.opts.Order, elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(b.opts.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint32(shoff),
		Ehsize:    ehdrSize,
		Shentsize: shdrSize,
		Shnum:     uint16(len(b.sections)),
		Shstrndx:  shstrtabIndex,
	})

	for i, s := range b.sections {
		if s.typ == elf.SHT_NULL {
			continue
		}
		if pad := offsets[i] - uint64(buf.Len()); pad > 0 {
			buf.Write(make([]byte, pad))
		}
		buf.Write(s.data)
	}

	if pad := shoff - uint64(buf.Len()); pad > 0 {
		buf.Write(make([]byte, pad))
	}

	shstr := stringTable{}
	for i, s := range b.sections {
		nameOff := shstr.add(s.name)
		shdr := elf.Section32{
			Name:      nameOff,
			Type:      uint32(s.typ),
			Flags:     uint32(s.flags),
			Size:      uint32(len(s.data)),
			Link:      s.link,
			Info:      s.info,
			Addralign: uint32(s.align),
			Entsize:   uint32(s.entsize),
		}
		if s.typ != elf.SHT_NULL {
			shdr.Off = uint32(offsets[i])
		}
		binary.Write(&buf, b.opts.Order, shdr)
	}

	_, err := w.Write(buf.Bytes())
	return err
}
