package targets

import (
	"debug/elf"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/hwio/objfile"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrUnknownMachine = errors.New("unknown machine name")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo

type TargetInfo struct {
	Series       string   `yaml:"series"`
	Chips        []string `yaml:"chips"`
	Architecture string   `yaml:"architecture"`
	Triple       string   `yaml:"triple"`
	WordBits     int      `yaml:"wordBits"`
	Alignment    int      `yaml:"alignment"`
	ObjectFormat string   `yaml:"objectFormat"` // "elf" or "macho"
	Machine      string   `yaml:"machine"`
	ByteOrder    string   `yaml:"byteOrder"` // "little" or "big"
}

// SectionSpelling returns the target object format's conventional spelling of
// a linker-set section name. ELF sections are flat dotted names; Mach-O
// sections live inside a segment and use the "__SEGMENT,__section" form.
func (t TargetInfo) SectionSpelling(name string) string {
	name = strings.TrimPrefix(name, ".")
	if t.ObjectFormat == "macho" {
		return "__DATA,__" + name
	}
	return "." + name
}

// Order returns the target's byte order.
func (t TargetInfo) Order() binary.ByteOrder {
	if t.ByteOrder == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

var machines = map[string]elf.Machine{
	"arm":     elf.EM_ARM,
	"aarch64": elf.EM_AARCH64,
	"x86-64":  elf.EM_X86_64,
	"riscv":   elf.EM_RISCV,
	"ppc64":   elf.EM_PPC64,
}

// ObjfileOptions maps the target description onto object-emission options.
func (t TargetInfo) ObjfileOptions() (objfile.Options, error) {
	machine, ok := machines[t.Machine]
	if !ok {
		return objfile.Options{}, fmt.Errorf("%w: %q", ErrUnknownMachine, t.Machine)
	}
	class := elf.ELFCLASS64
	if t.WordBits == 32 {
		class = elf.ELFCLASS32
	}
	return objfile.Options{
		Machine: machine,
		Class:   class,
		Order:   t.Order(),
	}, nil
}

func (t Targets) FindBySeries(name string) (TargetInfo, error) {
	for _, target := range t {
		if target.Series == strings.ToLower(name) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: series %q", ErrTargetNotFound, name)
}

func (t Targets) FindByChip(name string) (TargetInfo, error) {
	for _, target := range t {
		if slices.Contains(target.Chips, strings.ToLower(name)) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: chip %q", ErrTargetNotFound, name)
}

func init() {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(rawTargets, &t); err != nil {
		panic(err)
	}

	targets = t.Elements
}
