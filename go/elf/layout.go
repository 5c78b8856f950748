package elf

import (
	"github.com/lunixbochs/highelf/go/stream"
)

type field struct {
	dst   interface{}
	width stream.Width
}

func readFields(c *stream.Cursor, fields ...field) error {
	for _, f := range fields {
		if err := c.ReadInto(f.dst, f.width); err != nil {
			return err
		}
	}
	return nil
}

// layout captures everything that differs between ELF32 and ELF64. It is
// picked once from the ident class byte. Address-sized fields are read at
// the class width and widened into the 64-bit model fields.
type layout struct {
	class            Class
	addr             stream.Width
	headerSize       uint16
	progEntrySize    uint16
	sectionEntrySize uint16
}

var (
	layout32 = &layout{
		class:            ELFCLASS32,
		addr:             stream.Word,
		headerSize:       52,
		progEntrySize:    32,
		sectionEntrySize: 40,
	}
	layout64 = &layout{
		class:            ELFCLASS64,
		addr:             stream.Double,
		headerSize:       64,
		progEntrySize:    56,
		sectionEntrySize: 64,
	}
)

func layoutFor(c Class) *layout {
	switch c {
	case ELFCLASS32:
		return layout32
	case ELFCLASS64:
		return layout64
	}
	return nil
}

// readHeaderTail reads the header fields after e_version.
func (l *layout) readHeaderTail(c *stream.Cursor, h *Header) error {
	return readFields(c,
		field{&h.Entry, l.addr},
		field{&h.ProgOffset, l.addr},
		field{&h.SectionOffset, l.addr},
		field{&h.Flags, stream.Word},
		field{&h.HeaderSize, stream.Half},
		field{&h.ProgEntrySize, stream.Half},
		field{&h.ProgCount, stream.Half},
		field{&h.SectionEntrySize, stream.Half},
		field{&h.SectionCount, stream.Half},
		field{&h.StringIndex, stream.Half},
	)
}

// readProg follows the class field order: ELF64 moves p_flags up next to
// p_type, ELF32 keeps it between p_memsz and p_align.
func (l *layout) readProg(c *stream.Cursor, p *ProgramHeader) error {
	typ := field{(*uint32)(&p.Type), stream.Word}
	flags := field{&p.Flags, stream.Word}
	if l.class == ELFCLASS64 {
		return readFields(c,
			typ,
			flags,
			field{&p.Offset, l.addr},
			field{&p.VAddr, l.addr},
			field{&p.PAddr, l.addr},
			field{&p.FileSize, l.addr},
			field{&p.MemSize, l.addr},
			field{&p.Align, l.addr},
		)
	}
	return readFields(c,
		typ,
		field{&p.Offset, l.addr},
		field{&p.VAddr, l.addr},
		field{&p.PAddr, l.addr},
		field{&p.FileSize, l.addr},
		field{&p.MemSize, l.addr},
		flags,
		field{&p.Align, l.addr},
	)
}

// readSection shares one field order between classes; only the widths of
// flags, addresses, sizes and alignment change.
func (l *layout) readSection(c *stream.Cursor, s *SectionHeader) error {
	return readFields(c,
		field{&s.Name, stream.Word},
		field{(*uint32)(&s.Type), stream.Word},
		field{&s.Flags, l.addr},
		field{&s.Addr, l.addr},
		field{&s.Offset, l.addr},
		field{&s.Size, l.addr},
		field{&s.Link, stream.Word},
		field{&s.Info, stream.Word},
		field{&s.AddrAlign, l.addr},
		field{&s.EntSize, l.addr},
	)
}
