// Package elf decodes ELF identification, headers, program and section
// header tables, and section payloads into a read-only model.
package elf

import (
	"bytes"
	"io"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/models"
	"github.com/lunixbochs/highelf/go/stream"
)

var ErrAlreadyLoaded = errors.New("Load() called twice")

// File is a single-use decoder. The model fields are only meaningful once
// Status() returns Loaded.
type File struct {
	Ident          Ident
	Header         Header
	Progs          []ProgramHeader
	SectionHeaders []SectionHeader
	Sections       []Section

	Path string

	config *models.Config
	layout *layout
	status Status
	err    error
}

func New(config *models.Config) *File {
	return &File{config: config.WithDefaults()}
}

// Open constructs a decoder and loads path. The returned error is non-nil
// for every status other than Loaded.
func Open(path string, config *models.Config) (*File, error) {
	f := New(config)
	if f.Load(path) != Loaded {
		return f, f.Err()
	}
	return f, nil
}

func (f *File) Status() Status { return f.status }

// Err describes why the last Load failed.
func (f *File) Err() error { return f.err }

func (f *File) Bits() int {
	if f.Ident.Class == ELFCLASS64 {
		return 64
	}
	return 32
}

// Section returns the first section with the given name.
func (f *File) Section(name string) *Section {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// SectionsByType returns the indexes of sections of type t.
func (f *File) SectionsByType(t SectionType) []int {
	var ret []int
	for i, sh := range f.SectionHeaders {
		if sh.Type == t {
			ret = append(ret, i)
		}
	}
	return ret
}

// Load decodes the file at path. The file handle is released before Load
// returns, whatever the outcome.
func (f *File) Load(path string) Status {
	if f.status != Unloaded {
		f.err = errors.WithStack(ErrAlreadyLoaded)
		return f.status
	}
	f.Path = path
	src, err := stream.Open(path, f.config.MaxInflatedSize)
	if err != nil {
		return f.finish(BadFile, err)
	}
	defer src.Close()
	return f.decode(src)
}

// Decode is Load for an already open source.
func (f *File) Decode(r io.ReadSeeker) Status {
	if f.status != Unloaded {
		f.err = errors.WithStack(ErrAlreadyLoaded)
		return f.status
	}
	return f.decode(r)
}

func (f *File) finish(status Status, err error) Status {
	f.status = status
	f.err = err
	logger := f.config.Log()
	if status == Loaded {
		level.Debug(logger).Log("msg", "elf loaded", "path", f.Path, "class", f.Ident.Class,
			"progs", len(f.Progs), "sections", len(f.Sections))
	} else {
		level.Debug(logger).Log("msg", "elf load failed", "path", f.Path, "status", status, "err", err)
	}
	return status
}

func (f *File) ioFailure(err error, what string) Status {
	return f.finish(IOFailure, errors.Wrap(err, what))
}

func (f *File) decode(r io.ReadSeeker) Status {
	c := stream.NewCursor(r)
	if err := c.Seek(0); err != nil {
		return f.ioFailure(err, "rewind")
	}

	id := &f.Ident
	raw, err := c.ReadBytes(uint64(len(id.Magic)))
	if err != nil {
		return f.ioFailure(err, "reading magic")
	}
	copy(id.Magic[:], raw)
	if id.Magic != Magic {
		return f.finish(BadIdentMagic, errors.Errorf("bad magic % x", id.Magic[:]))
	}
	raw, err = c.ReadBytes(identSize - uint64(len(id.Magic)))
	if err != nil {
		return f.ioFailure(err, "reading ident")
	}
	id.Class = Class(raw[0])
	id.Data = Data(raw[1])
	id.Version = raw[2]
	id.OSABI = raw[3]
	id.ABIVersion = raw[4]
	copy(id.Pad[:], raw[5:12])
	if f.layout = layoutFor(id.Class); f.layout == nil {
		return f.finish(BadIdentClass, errors.Errorf("bad class %d", id.Class))
	}
	switch id.Data {
	case ELFDATA2LSB:
		c.SetEndianness(stream.Little)
	case ELFDATA2MSB:
		c.SetEndianness(stream.Big)
	default:
		return f.finish(BadIdentData, errors.Errorf("bad data encoding %d", id.Data))
	}
	if id.Version != 1 {
		return f.finish(BadIdentVersion, errors.Errorf("bad ident version %d", id.Version))
	}

	h := &f.Header
	err = readFields(c,
		field{(*uint16)(&h.Type), stream.Half},
		field{&h.Machine, stream.Half},
		field{&h.Version, stream.Word},
	)
	if err != nil {
		return f.ioFailure(err, "reading header")
	}
	if h.Version != 1 {
		return f.finish(BadHeaderVersion, errors.Errorf("bad header version %d", h.Version))
	}
	if err := f.layout.readHeaderTail(c, h); err != nil {
		return f.ioFailure(err, "reading header")
	}
	size, err := c.Size()
	if err != nil {
		return f.ioFailure(err, "measuring input")
	}
	if status, err := f.checkHeader(uint64(size)); err != nil {
		return f.finish(status, err)
	}

	f.Progs = make([]ProgramHeader, h.ProgCount)
	f.SectionHeaders = make([]SectionHeader, h.SectionCount)
	f.Sections = make([]Section, h.SectionCount)

	if h.ProgCount > 0 {
		if err := c.Seek(h.ProgOffset); err != nil {
			return f.ioFailure(err, "seeking to program headers")
		}
		for i := range f.Progs {
			if err := f.layout.readProg(c, &f.Progs[i]); err != nil {
				return f.ioFailure(err, "reading program header")
			}
		}
	}
	if h.SectionCount > 0 {
		if err := c.Seek(h.SectionOffset); err != nil {
			return f.ioFailure(err, "seeking to section headers")
		}
		for i := range f.SectionHeaders {
			if err := f.layout.readSection(c, &f.SectionHeaders[i]); err != nil {
				return f.ioFailure(err, "reading section header")
			}
		}
	}

	for i, sh := range f.SectionHeaders {
		if !sh.Type.HasPayload() {
			f.Sections[i].Data = []byte{}
			continue
		}
		if !within(sh.Offset, sh.Size, uint64(size)) {
			return f.finish(StructuralViolation, errors.Errorf("section %d data [%#x+%#x] past end of file (%#x bytes)",
				i, sh.Offset, sh.Size, size))
		}
		if err := c.Seek(sh.Offset); err != nil {
			return f.ioFailure(err, "seeking to section data")
		}
		data, err := c.ReadBytes(sh.Size)
		if err != nil {
			return f.ioFailure(errors.Wrapf(err, "section %d", i), "reading section data")
		}
		f.Sections[i].Data = data
	}

	if err := f.resolveNames(); err != nil {
		return f.finish(StructuralViolation, err)
	}
	return f.finish(Loaded, nil)
}

// within reports whether [off, off+n) fits in size bytes without overflow.
func within(off, n, size uint64) bool {
	return off <= size && n <= size-off
}

// checkHeader runs before any table is allocated. size is the input length.
func (f *File) checkHeader(size uint64) (Status, error) {
	h, l := &f.Header, f.layout
	if h.HeaderSize != l.headerSize {
		return BadHeaderSize, errors.Errorf("e_ehsize %d, want %d for %s", h.HeaderSize, l.headerSize, l.class)
	}
	if h.ProgCount > 0 && h.ProgEntrySize != l.progEntrySize {
		return BadHeaderSize, errors.Errorf("e_phentsize %d, want %d for %s", h.ProgEntrySize, l.progEntrySize, l.class)
	}
	if h.SectionCount > 0 && h.SectionEntrySize != l.sectionEntrySize {
		return BadHeaderSize, errors.Errorf("e_shentsize %d, want %d for %s", h.SectionEntrySize, l.sectionEntrySize, l.class)
	}
	if int(h.ProgCount) > f.config.MaxProgramHeaders {
		return StructuralViolation, errors.Errorf("e_phnum %d over limit %d", h.ProgCount, f.config.MaxProgramHeaders)
	}
	if int(h.SectionCount) > f.config.MaxSections {
		return StructuralViolation, errors.Errorf("e_shnum %d over limit %d", h.SectionCount, f.config.MaxSections)
	}
	if h.StringIndex != SHN_UNDEF && h.StringIndex != SHN_XINDEX && h.StringIndex >= h.SectionCount {
		return StructuralViolation, errors.Errorf("e_shstrndx %d out of range (%d sections)", h.StringIndex, h.SectionCount)
	}
	if h.StringIndex == SHN_XINDEX && h.SectionCount == 0 {
		return StructuralViolation, errors.New("e_shstrndx is SHN_XINDEX without a section 0")
	}
	// counts and entry sizes are 16-bit, so their product cannot overflow
	if n := uint64(h.ProgCount) * uint64(h.ProgEntrySize); n > 0 && !within(h.ProgOffset, n, size) {
		return StructuralViolation, errors.Errorf("program header table [%#x+%#x] past end of file (%#x bytes)", h.ProgOffset, n, size)
	}
	if n := uint64(h.SectionCount) * uint64(h.SectionEntrySize); n > 0 && !within(h.SectionOffset, n, size) {
		return StructuralViolation, errors.Errorf("section header table [%#x+%#x] past end of file (%#x bytes)", h.SectionOffset, n, size)
	}
	return 0, nil
}

// stringIndex resolves e_shstrndx, following SHN_XINDEX through section 0's
// sh_link. ok is false when the file has no section name table.
func (f *File) stringIndex() (idx uint32, ok bool, err error) {
	idx = uint32(f.Header.StringIndex)
	if idx == SHN_XINDEX {
		idx = f.SectionHeaders[0].Link
	}
	if idx == SHN_UNDEF {
		return 0, false, nil
	}
	if idx >= uint32(len(f.Sections)) {
		return 0, false, errors.Errorf("section name table index %d out of range", idx)
	}
	return idx, true, nil
}

func (f *File) resolveNames() error {
	idx, ok, err := f.stringIndex()
	if err != nil || !ok {
		return err
	}
	table := f.Sections[idx].Data
	for i, sh := range f.SectionHeaders {
		name, err := cstring(table, sh.Name)
		if err != nil {
			return errors.Wrapf(err, "section %d name", i)
		}
		f.Sections[i].Name = name
	}
	return nil
}

// cstring reads a NUL-terminated string at off inside table.
func cstring(table []byte, off uint32) (string, error) {
	if uint64(off) >= uint64(len(table)) {
		return "", errors.Errorf("offset %d outside %d-byte string table", off, len(table))
	}
	end := bytes.IndexByte(table[off:], 0)
	if end < 0 {
		return "", errors.Errorf("string at offset %d is unterminated", off)
	}
	return string(table[off : int(off)+end]), nil
}
