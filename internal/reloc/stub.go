package reloc

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/binarycraft007/bionic-translation/internal/elfconst"
	"github.com/binarycraft007/bionic-translation/internal/hostsym"
)

// NewStubCreate returns a StubCreate hook that builds one per-symbol
// "die at runtime" trampoline for arch. Each call mmaps a fresh RWX
// page (this is a rewrite of the original copyable-function trick per
// spec.md §9: rather than copying a reference implementation's compiled
// bytes and patching a sidecar offset, a tiny trampoline is assembled
// directly) that loads a pointer to a per-symbol data block into the
// architecture's first argument register and tail-jumps to the fixed
// host dispatcher in internal/hostsym.
func NewStubCreate(arch elfconst.Arch) StubCreate {
	return func(name string) (uintptr, error) {
		data := hostsym.NewDieStubData(name)
		dispatch := hostsym.DieStubDispatchAddr()

		code, err := trampoline(arch, data, dispatch)
		if err != nil {
			return 0, err
		}
		return installStub(code)
	}
}

func trampoline(arch elfconst.Arch, dataPtr, dispatchAddr uintptr) ([]byte, error) {
	switch arch {
	case elfconst.ArchX86_64:
		return trampolineAMD64(dataPtr, dispatchAddr), nil
	case elfconst.ArchARM64:
		return trampolineARM64(dataPtr, dispatchAddr), nil
	case elfconst.Arch386:
		return trampoline386(dataPtr, dispatchAddr), nil
	case elfconst.ArchARM:
		return trampolineARM(dataPtr, dispatchAddr), nil
	default:
		return nil, fmt.Errorf("reloc: no stub trampoline for architecture %s", arch)
	}
}

// trampolineAMD64: movabs rdi, dataPtr; movabs rax, dispatchAddr; jmp rax.
func trampolineAMD64(dataPtr, dispatchAddr uintptr) []byte {
	buf := make([]byte, 22)
	buf[0], buf[1] = 0x48, 0xBF
	binary.LittleEndian.PutUint64(buf[2:10], uint64(dataPtr))
	buf[10], buf[11] = 0x48, 0xB8
	binary.LittleEndian.PutUint64(buf[12:20], uint64(dispatchAddr))
	buf[20], buf[21] = 0xFF, 0xE0
	return buf
}

// trampolineARM64: four MOVZ/MOVK into X0 (data pointer, argument
// register under AAPCS64), four into X16 (IP0 scratch), then BR X16.
func trampolineARM64(dataPtr, dispatchAddr uintptr) []byte {
	var buf []byte
	buf = append(buf, loadImm64ARM64(0, uint64(dataPtr))...)
	buf = append(buf, loadImm64ARM64(16, uint64(dispatchAddr))...)
	// BR X16
	br := uint32(0xD61F0000) | (16 << 5)
	buf = append(buf, encodeLE32(br)...)
	return buf
}

func loadImm64ARM64(reg uint32, imm uint64) []byte {
	var buf []byte
	for hw := uint32(0); hw < 4; hw++ {
		chunk := uint32((imm >> (hw * 16)) & 0xFFFF)
		var insn uint32
		if hw == 0 {
			insn = 0xD2800000 | (hw << 21) | (chunk << 5) | reg // MOVZ
		} else {
			insn = 0xF2800000 | (hw << 21) | (chunk << 5) | reg // MOVK
		}
		buf = append(buf, encodeLE32(insn)...)
	}
	return buf
}

func encodeLE32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// trampoline386: movl dataPtr, %eax (arg passed via register is
// non-standard on ia32, but the die-stub dispatcher is reached only
// through this generated trampoline so the convention only needs to be
// internally consistent) ... in practice: mov $dataPtr, %ecx; mov
// $dispatchAddr, %eax; jmp *%eax. Guest 32-bit address space is assumed
// to fit the host addresses involved, matching how this loader's other
// 32-bit-guest-on-64-bit-host paths work.
func trampoline386(dataPtr, dispatchAddr uintptr) []byte {
	buf := make([]byte, 12)
	buf[0] = 0xB9 // mov imm32, ecx
	binary.LittleEndian.PutUint32(buf[1:5], uint32(dataPtr))
	buf[5] = 0xB8 // mov imm32, eax
	binary.LittleEndian.PutUint32(buf[6:10], uint32(dispatchAddr))
	buf[10], buf[11] = 0xFF, 0xE0 // jmp *eax
	return buf
}

// trampolineARM: MOVW/MOVT R0, dataPtr; MOVW/MOVT R12, dispatchAddr; BX R12.
func trampolineARM(dataPtr, dispatchAddr uintptr) []byte {
	var buf []byte
	buf = append(buf, loadImm32ARM(0, uint32(dataPtr))...)
	buf = append(buf, loadImm32ARM(12, uint32(dispatchAddr))...)
	bx := uint32(0xE12FFF10) | 12
	buf = append(buf, encodeLE32(bx)...)
	return buf
}

func loadImm32ARM(reg uint32, imm uint32) []byte {
	movw := uint32(0xE3000000) | (((imm >> 12) & 0xF) << 16) | (reg << 12) | (imm & 0xFFF)
	movt := uint32(0xE3400000) | (((imm >> 28) & 0xF) << 16) | (reg << 12) | ((imm >> 16) & 0xFFF)
	var buf []byte
	buf = append(buf, encodeLE32(movw)...)
	buf = append(buf, encodeLE32(movt)...)
	return buf
}

// installStub copies code into a freshly mmapped RWX page and returns
// its address. One page per stub is wasteful but simple; stubs exist
// only when LINKER_DIE_AT_RUNTIME is set, a debugging aid, not a hot path.
func installStub(code []byte) (uintptr, error) {
	pageLen := 4096
	data, err := unix.Mmap(-1, 0, pageLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("reloc: mmap stub page: %w", err)
	}
	copy(data, code)
	if err := unix.Mprotect(data, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(data)
		return 0, fmt.Errorf("reloc: mprotect stub page executable: %w", err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}
