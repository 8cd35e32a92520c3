//go:build linux && (amd64 || arm64 || mips64 || mips64le || ppc64 || ppc64le || riscv64 || s390x || loong64)

package volatile

// Reg64 returns a 64-bit handle at the given offset into the region.
func (m *Region) Reg64(offset uintptr) Register64 {
	return NewRegister64(m.addr(offset, 8))
}
