package elfconst

// ELF identification and machine constants (subset spec.md §6 requires).
const (
	EI_MAG0    = 0
	EI_MAG1    = 1
	EI_MAG2    = 2
	EI_MAG3    = 3
	EI_CLASS   = 4
	EI_DATA    = 5
	ELFMAG0    = 0x7f
	ELFMAG1    = 'E'
	ELFMAG2    = 'L'
	ELFMAG3    = 'F'
	ELFCLASS32 = 1
	ELFCLASS64 = 2
	ELFDATA2LSB = 1

	EM_386     = 3
	EM_ARM     = 40
	EM_X86_64  = 62
	EM_AARCH64 = 183

	ET_DYN = 3
)

// Program header types.
const (
	PT_NULL     = 0
	PT_LOAD     = 1
	PT_DYNAMIC  = 2
	PT_INTERP   = 3
	PT_NOTE     = 4
	PT_SHLIB    = 5
	PT_PHDR     = 6
	PT_TLS      = 7
	PT_GNU_EH_FRAME = 0x6474e550
	PT_GNU_STACK    = 0x6474e551
	PT_GNU_RELRO    = 0x6474e552
	PT_ARM_EXIDX    = 0x70000001
)

// Program header flags.
const (
	PF_X = 1
	PF_W = 2
	PF_R = 4
)

// Dynamic section tags.
const (
	DT_NULL     = 0
	DT_NEEDED   = 1
	DT_PLTRELSZ = 2
	DT_PLTGOT   = 3
	DT_HASH     = 4
	DT_STRTAB   = 5
	DT_SYMTAB   = 6
	DT_RELA     = 7
	DT_RELASZ   = 8
	DT_RELAENT  = 9
	DT_STRSZ    = 10
	DT_SYMENT   = 11
	DT_INIT     = 12
	DT_FINI     = 13
	DT_SONAME   = 14
	DT_RPATH    = 15
	DT_SYMBOLIC = 16
	DT_REL      = 17
	DT_RELSZ    = 18
	DT_RELENT   = 19
	DT_PLTREL   = 20
	DT_DEBUG    = 21
	DT_TEXTREL  = 22
	DT_JMPREL   = 23
	DT_BIND_NOW = 24

	DT_INIT_ARRAY    = 25
	DT_FINI_ARRAY    = 26
	DT_INIT_ARRAYSZ  = 27
	DT_FINI_ARRAYSZ  = 28
	DT_RUNPATH       = 29
	DT_FLAGS         = 30
	DT_PREINIT_ARRAY   = 32
	DT_PREINIT_ARRAYSZ = 33

	DT_RELRSZ = 0x23 // 35
	DT_RELR   = 0x24 // 36
	DT_RELRENT = 0x25

	DT_GNU_HASH = 0x6ffffef5

	// Android's pre-standardization SHT_RELR encoding, numerically
	// distinct from the now-standard DT_RELR/DT_RELRSZ above. Guest
	// objects built by older NDK toolchains carry these instead.
	DT_ANDROID_RELR      = 0x6fffe000
	DT_ANDROID_RELRSZ    = 0x6fffe001
	DT_ANDROID_RELRENT   = 0x6fffe003
	DT_ANDROID_RELRCOUNT = 0x6fffe005
)

// Symbol binding, type, and section index values.
const (
	STB_LOCAL  = 0
	STB_GLOBAL = 1
	STB_WEAK   = 2

	STT_NOTYPE = 0
	STT_OBJECT = 1
	STT_FUNC   = 2

	SHN_UNDEF = 0
)

func StBind(info uint8) uint8 { return info >> 4 }
func StType(info uint8) uint8 { return info & 0xf }

// Ehdr64/Ehdr32 mirror Elf64_Ehdr/Elf32_Ehdr. Only the fields the loader
// actually consults are named explicitly; the rest are read positionally
// by internal/elfreader.
type Ehdr64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Ehdr32 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Phdr64 struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

type Phdr32 struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type Dyn64 struct {
	Tag uint64
	Val uint64 // union with Ptr; same bit pattern
}

type Dyn32 struct {
	Tag uint32
	Val uint32
}

type Sym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type Sym32 struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

type Rela64 struct {
	Offset uint64
	Info   uint64
	Addend int64
}

type Rel64 struct {
	Offset uint64
	Info   uint64
}

type Rela32 struct {
	Offset uint32
	Info   uint32
	Addend int32
}

type Rel32 struct {
	Offset uint32
	Info   uint32
}

// R_INFO_SYM/R_INFO_TYPE extract the symbol index and relocation type
// from a 64-bit r_info field (ELF64 layout; ELF32 uses an 8/24 split,
// see R_INFO_SYM32/R_INFO_TYPE32).
func R_INFO_SYM(info uint64) uint32  { return uint32(info >> 32) }
func R_INFO_TYPE(info uint64) uint32 { return uint32(info) }

func R_INFO_SYM32(info uint32) uint32  { return info >> 8 }
func R_INFO_TYPE32(info uint32) uint32 { return info & 0xff }

const PrelinkTag = "PRE "

// PrelinkTrailerSize is sizeof(prelink_info_t): an 8-byte little-endian
// base address followed by the 4-byte tag (see apkenv_is_prelinked).
const PrelinkTrailerSize = 8 + 4
