package elf

import "fmt"

type Class uint8

const (
	ELFCLASSNONE Class = 0
	ELFCLASS32   Class = 1
	ELFCLASS64   Class = 2
)

func (c Class) String() string {
	switch c {
	case ELFCLASS32:
		return "ELF32"
	case ELFCLASS64:
		return "ELF64"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

type Data uint8

const (
	ELFDATANONE Data = 0
	ELFDATA2LSB Data = 1
	ELFDATA2MSB Data = 2
)

func (d Data) String() string {
	switch d {
	case ELFDATA2LSB:
		return "2's complement, little endian"
	case ELFDATA2MSB:
		return "2's complement, big endian"
	}
	return fmt.Sprintf("Data(%d)", uint8(d))
}

type FileType uint16

const (
	ET_NONE FileType = 0
	ET_REL  FileType = 1
	ET_EXEC FileType = 2
	ET_DYN  FileType = 3
	ET_CORE FileType = 4
)

var fileTypeNames = map[FileType]string{
	ET_NONE: "NONE",
	ET_REL:  "REL",
	ET_EXEC: "EXEC",
	ET_DYN:  "DYN",
	ET_CORE: "CORE",
}

func (t FileType) String() string {
	if s, ok := fileTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// Section header indexes
const (
	SHN_UNDEF     = 0
	SHN_LORESERVE = 0xff00
	SHN_XINDEX    = 0xffff
)

type SectionType uint32

const (
	SHT_NULL          SectionType = 0
	SHT_PROGBITS      SectionType = 1
	SHT_SYMTAB        SectionType = 2
	SHT_STRTAB        SectionType = 3
	SHT_RELA          SectionType = 4
	SHT_HASH          SectionType = 5
	SHT_DYNAMIC       SectionType = 6
	SHT_NOTE          SectionType = 7
	SHT_NOBITS        SectionType = 8
	SHT_REL           SectionType = 9
	SHT_SHLIB         SectionType = 10
	SHT_DYNSYM        SectionType = 11
	SHT_INIT_ARRAY    SectionType = 14
	SHT_FINI_ARRAY    SectionType = 15
	SHT_PREINIT_ARRAY SectionType = 16
	SHT_GROUP         SectionType = 17
	SHT_SYMTAB_SHNDX  SectionType = 18
)

var sectionTypeNames = map[SectionType]string{
	SHT_NULL:          "NULL",
	SHT_PROGBITS:      "PROGBITS",
	SHT_SYMTAB:        "SYMTAB",
	SHT_STRTAB:        "STRTAB",
	SHT_RELA:          "RELA",
	SHT_HASH:          "HASH",
	SHT_DYNAMIC:       "DYNAMIC",
	SHT_NOTE:          "NOTE",
	SHT_NOBITS:        "NOBITS",
	SHT_REL:           "REL",
	SHT_SHLIB:         "SHLIB",
	SHT_DYNSYM:        "DYNSYM",
	SHT_INIT_ARRAY:    "INIT_ARRAY",
	SHT_FINI_ARRAY:    "FINI_ARRAY",
	SHT_PREINIT_ARRAY: "PREINIT_ARRAY",
	SHT_GROUP:         "GROUP",
	SHT_SYMTAB_SHNDX:  "SYMTAB_SHNDX",
}

func (t SectionType) String() string {
	if s, ok := sectionTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%08x", uint32(t))
}

// HasPayload is false for section types that occupy no file bytes.
func (t SectionType) HasPayload() bool {
	return t != SHT_NULL && t != SHT_NOBITS
}

type ProgType uint32

const (
	PT_NULL    ProgType = 0
	PT_LOAD    ProgType = 1
	PT_DYNAMIC ProgType = 2
	PT_INTERP  ProgType = 3
	PT_NOTE    ProgType = 4
	PT_SHLIB   ProgType = 5
	PT_PHDR    ProgType = 6
	PT_TLS     ProgType = 7
)

var progTypeNames = map[ProgType]string{
	PT_NULL:    "NULL",
	PT_LOAD:    "LOAD",
	PT_DYNAMIC: "DYNAMIC",
	PT_INTERP:  "INTERP",
	PT_NOTE:    "NOTE",
	PT_SHLIB:   "SHLIB",
	PT_PHDR:    "PHDR",
	PT_TLS:     "TLS",
}

func (t ProgType) String() string {
	if s, ok := progTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%08x", uint32(t))
}

var Magic = [4]byte{0x7f, 'E', 'L', 'F'}

const identSize = 16

type Ident struct {
	Magic      [4]byte
	Class      Class
	Data       Data
	Version    uint8
	OSABI      uint8
	ABIVersion uint8
	Pad        [7]byte
}

// Header holds the file header with every address and offset widened to
// 64 bits, whatever the file class.
type Header struct {
	Type             FileType
	Machine          uint16
	Version          uint32
	Entry            uint64
	ProgOffset       uint64
	SectionOffset    uint64
	Flags            uint32
	HeaderSize       uint16
	ProgEntrySize    uint16
	ProgCount        uint16
	SectionEntrySize uint16
	SectionCount     uint16
	StringIndex      uint16
}

type ProgramHeader struct {
	Type     ProgType
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type SectionHeader struct {
	Name      uint32
	Type      SectionType
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// Section is a section's resolved name and raw file bytes.
type Section struct {
	Name string
	Data []byte
}

// Section flag bits
const (
	SHF_WRITE            = 0x1
	SHF_ALLOC            = 0x2
	SHF_EXECINSTR        = 0x4
	SHF_MERGE            = 0x10
	SHF_STRINGS          = 0x20
	SHF_INFO_LINK        = 0x40
	SHF_LINK_ORDER       = 0x80
	SHF_OS_NONCONFORMING = 0x100
	SHF_GROUP            = 0x200
	SHF_TLS              = 0x400
)

var sectionFlagLetters = []struct {
	bit    uint64
	letter byte
}{
	{SHF_WRITE, 'W'}, {SHF_ALLOC, 'A'}, {SHF_EXECINSTR, 'X'}, {SHF_MERGE, 'M'},
	{SHF_STRINGS, 'S'}, {SHF_INFO_LINK, 'I'}, {SHF_LINK_ORDER, 'L'},
	{SHF_OS_NONCONFORMING, 'O'}, {SHF_GROUP, 'G'}, {SHF_TLS, 'T'},
}

// SectionFlagString renders sh_flags with readelf's letters. Bits without a
// letter show up as a trailing 'x'.
func SectionFlagString(flags uint64) string {
	var s []byte
	for _, f := range sectionFlagLetters {
		if flags&f.bit != 0 {
			s = append(s, f.letter)
			flags &^= f.bit
		}
	}
	if flags != 0 {
		s = append(s, 'x')
	}
	return string(s)
}

// Segment permission bits
const (
	PF_X = 0x1
	PF_W = 0x2
	PF_R = 0x4
)

// ProgFlagString renders p_flags as "RWE" with '-' for missing permissions.
func ProgFlagString(flags uint32) string {
	s := []byte("---")
	if flags&PF_R != 0 {
		s[0] = 'R'
	}
	if flags&PF_W != 0 {
		s[1] = 'W'
	}
	if flags&PF_X != 0 {
		s[2] = 'E'
	}
	return string(s)
}
