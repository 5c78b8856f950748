package dtb

import (
	"bytes"
	"encoding/binary"
)

// dtbBuilder assembles a blob as header, reservation map, structure block,
// then strings block. Every block starts on an 8-byte boundary.
type dtbBuilder struct {
	version    uint32
	reserve    []ReserveEntry
	noSentinel bool
	structure  bytes.Buffer
	strings    bytes.Buffer
	stroff     map[string]uint32
}

func newBuilder() *dtbBuilder {
	return &dtbBuilder{version: 17, stroff: make(map[string]uint32)}
}

func (b *dtbBuilder) token(v uint32) *dtbBuilder {
	var w [4]byte
	binary.BigEndian.PutUint32(w[:], v)
	b.structure.Write(w[:])
	return b
}

func (b *dtbBuilder) pad() {
	for b.structure.Len()%4 != 0 {
		b.structure.WriteByte(0)
	}
}

func (b *dtbBuilder) begin(name string) *dtbBuilder {
	b.token(FDT_BEGIN_NODE)
	b.structure.WriteString(name)
	b.structure.WriteByte(0)
	b.pad()
	return b
}

func (b *dtbBuilder) nameOff(name string) uint32 {
	off, ok := b.stroff[name]
	if !ok {
		off = uint32(b.strings.Len())
		b.strings.WriteString(name)
		b.strings.WriteByte(0)
		b.stroff[name] = off
	}
	return off
}

func (b *dtbBuilder) prop(name string, data []byte) *dtbBuilder {
	return b.propAt(b.nameOff(name), data)
}

func (b *dtbBuilder) propAt(nameoff uint32, data []byte) *dtbBuilder {
	b.token(FDT_PROP)
	b.token(uint32(len(data)))
	b.token(nameoff)
	b.structure.Write(data)
	b.pad()
	return b
}

func (b *dtbBuilder) end() *dtbBuilder    { return b.token(FDT_END_NODE) }
func (b *dtbBuilder) nop() *dtbBuilder    { return b.token(FDT_NOP) }
func (b *dtbBuilder) finish() *dtbBuilder { return b.token(FDT_END) }

func align8(n int) int { return (n + 7) &^ 7 }

func (b *dtbBuilder) build() []byte {
	entries := append([]ReserveEntry{}, b.reserve...)
	if !b.noSentinel {
		entries = append(entries, ReserveEntry{})
	}
	rsvOff := headerSize
	structOff := align8(rsvOff + 16*len(entries))
	stringsOff := align8(structOff + b.structure.Len())
	total := stringsOff + b.strings.Len()

	out := make([]byte, total)
	be := binary.BigEndian
	for i, v := range []uint32{
		Magic, uint32(total), uint32(structOff), uint32(stringsOff), uint32(rsvOff),
		b.version, 16, 0, uint32(b.strings.Len()), uint32(b.structure.Len()),
	} {
		be.PutUint32(out[i*4:], v)
	}
	for i, e := range entries {
		be.PutUint64(out[rsvOff+i*16:], e.Address)
		be.PutUint64(out[rsvOff+i*16+8:], e.Size)
	}
	copy(out[structOff:], b.structure.Bytes())
	copy(out[stringsOff:], b.strings.Bytes())
	return out
}

// socFixture is a root node holding one "soc" child with a compatible
// property.
func socFixture() *dtbBuilder {
	b := newBuilder()
	b.reserve = []ReserveEntry{{Address: 0x1000, Size: 0x200}}
	b.begin("").
		begin("soc").prop("compatible", []byte{0x78, 0x00}).end().
		end().
		finish()
	return b
}
