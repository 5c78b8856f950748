package elf

import (
	"bytes"
	"encoding/binary"
)

type fixtureSection struct {
	name string
	hdr  SectionHeader
	data []byte
}

// elfFixture lays out an ELF image byte by byte: header, program headers,
// section payloads, then the section header table. A .shstrtab section is
// appended automatically and becomes e_shstrndx.
type elfFixture struct {
	class    Class
	order    binary.ByteOrder
	header   Header
	progs    []ProgramHeader
	sections []fixtureSection
}

type fixtureWriter struct {
	bytes.Buffer
	order binary.ByteOrder
	class Class
}

func (w *fixtureWriter) u8(v uint8) { w.WriteByte(v) }

func (w *fixtureWriter) u16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *fixtureWriter) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *fixtureWriter) u64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.Write(b[:])
}

func (w *fixtureWriter) addr(v uint64) {
	if w.class == ELFCLASS64 {
		w.u64(v)
	} else {
		w.u32(uint32(v))
	}
}

func basicFixture(class Class, order binary.ByteOrder) *elfFixture {
	return &elfFixture{
		class: class,
		order: order,
		header: Header{
			Type:    ET_EXEC,
			Machine: 0xf3,
			Entry:   0x10074,
			Flags:   0x5,
		},
		progs: []ProgramHeader{
			{Type: PT_LOAD, Flags: 5, Offset: 0, VAddr: 0x10000, PAddr: 0x10000, FileSize: 0x90, MemSize: 0x90, Align: 0x1000},
			{Type: PT_NOTE, Flags: 4, Offset: 0x74, VAddr: 0x10074, PAddr: 0x10074, FileSize: 0x18, MemSize: 0x18, Align: 4},
		},
		sections: []fixtureSection{
			{name: "", hdr: SectionHeader{Type: SHT_NULL}},
			{name: ".text", hdr: SectionHeader{Type: SHT_PROGBITS, Flags: 6, Addr: 0x10074, AddrAlign: 4}, data: []byte{0x13, 0x00, 0x00, 0x00, 0x6f, 0x00, 0x00, 0x00}},
			{name: ".data", hdr: SectionHeader{Type: SHT_PROGBITS, Flags: 3, Addr: 0x11000, AddrAlign: 8}, data: []byte("hello\x00")},
			{name: ".bss", hdr: SectionHeader{Type: SHT_NOBITS, Flags: 3, Addr: 0x12000, Size: 4096, AddrAlign: 16}},
		},
	}
}

func (fx *elfFixture) build() ([]byte, *File) {
	l := layoutFor(fx.class)
	want := &File{Header: fx.header}

	sections := append([]fixtureSection{}, fx.sections...)
	strtab := []byte{0}
	nameOff := make([]uint32, len(sections)+1)
	for i, s := range sections {
		if s.name != "" {
			nameOff[i] = uint32(len(strtab))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
	}
	nameOff[len(sections)] = uint32(len(strtab))
	strtab = append(strtab, ".shstrtab\x00"...)
	sections = append(sections, fixtureSection{
		name: ".shstrtab",
		hdr:  SectionHeader{Type: SHT_STRTAB, AddrAlign: 1},
		data: strtab,
	})

	h := &want.Header
	h.Version = 1
	h.HeaderSize = l.headerSize
	h.ProgEntrySize = l.progEntrySize
	h.ProgCount = uint16(len(fx.progs))
	h.SectionEntrySize = l.sectionEntrySize
	h.SectionCount = uint16(len(sections))
	h.StringIndex = uint16(len(sections) - 1)
	if len(fx.progs) > 0 {
		h.ProgOffset = uint64(l.headerSize)
	}

	cur := uint64(l.headerSize) + uint64(len(fx.progs))*uint64(l.progEntrySize)
	for i := range sections {
		s := &sections[i]
		s.hdr.Name = nameOff[i]
		if s.hdr.Type.HasPayload() {
			s.hdr.Offset = cur
			s.hdr.Size = uint64(len(s.data))
			cur += s.hdr.Size
		} else if s.hdr.Type == SHT_NOBITS {
			s.hdr.Offset = cur
		}
		want.SectionHeaders = append(want.SectionHeaders, s.hdr)
		data := []byte{}
		if s.hdr.Type.HasPayload() {
			data = s.data
		}
		want.Sections = append(want.Sections, Section{Name: s.name, Data: data})
	}
	pad := (8 - cur%8) % 8
	h.SectionOffset = cur + pad
	want.Progs = append([]ProgramHeader{}, fx.progs...)

	w := &fixtureWriter{order: fx.order, class: fx.class}
	w.Write(Magic[:])
	w.u8(uint8(fx.class))
	if fx.order == binary.BigEndian {
		w.u8(uint8(ELFDATA2MSB))
	} else {
		w.u8(uint8(ELFDATA2LSB))
	}
	w.u8(1)
	w.u8(3)
	w.u8(0)
	w.Write(make([]byte, 7))
	want.Ident = Ident{Magic: Magic, Class: fx.class, Version: 1, OSABI: 3}
	want.Ident.Data = Data(w.Bytes()[5])

	w.u16(uint16(h.Type))
	w.u16(h.Machine)
	w.u32(h.Version)
	w.addr(h.Entry)
	w.addr(h.ProgOffset)
	w.addr(h.SectionOffset)
	w.u32(h.Flags)
	w.u16(h.HeaderSize)
	w.u16(h.ProgEntrySize)
	w.u16(h.ProgCount)
	w.u16(h.SectionEntrySize)
	w.u16(h.SectionCount)
	w.u16(h.StringIndex)

	for _, p := range fx.progs {
		w.u32(uint32(p.Type))
		if fx.class == ELFCLASS64 {
			w.u32(p.Flags)
		}
		w.addr(p.Offset)
		w.addr(p.VAddr)
		w.addr(p.PAddr)
		w.addr(p.FileSize)
		w.addr(p.MemSize)
		if fx.class == ELFCLASS32 {
			w.u32(p.Flags)
		}
		w.addr(p.Align)
	}
	for _, s := range sections {
		if s.hdr.Type.HasPayload() {
			w.Write(s.data)
		}
	}
	w.Write(make([]byte, pad))
	for _, s := range sections {
		w.u32(s.hdr.Name)
		w.u32(uint32(s.hdr.Type))
		w.addr(s.hdr.Flags)
		w.addr(s.hdr.Addr)
		w.addr(s.hdr.Offset)
		w.addr(s.hdr.Size)
		w.u32(s.hdr.Link)
		w.u32(s.hdr.Info)
		w.addr(s.hdr.AddrAlign)
		w.addr(s.hdr.EntSize)
	}
	return w.Bytes(), want
}

// headerFieldOffset returns the file offset of the 16-bit header field at
// position n after e_flags (0 = e_ehsize ... 5 = e_shstrndx).
func headerFieldOffset(class Class, n int) int {
	base := 16 + 2 + 2 + 4 + 4
	if class == ELFCLASS64 {
		base += 3 * 8
	} else {
		base += 3 * 4
	}
	return base + 2*n
}

const (
	fieldEhsize = iota
	fieldPhentsize
	fieldPhnum
	fieldShentsize
	fieldShnum
	fieldShstrndx
)
