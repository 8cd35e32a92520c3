//go:build !(amd64 || arm64 || mips64 || mips64le || ppc64 || ppc64le || riscv64 || s390x || loong64)

package volatile

// WordBits is the native word size of the target in bits. 64-bit handles are
// unavailable on this target.
const WordBits = 32
