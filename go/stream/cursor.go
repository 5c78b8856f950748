// Package stream implements the positioned, endian-correcting reader the
// object file and devicetree decoders are built on.
package stream

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Width is the on-wire size of a value in bytes.
type Width int

const (
	Byte   Width = 1
	Half   Width = 2
	Word   Width = 4
	Double Width = 8
)

var (
	ErrShortRead          = errors.New("short read")
	ErrUnknownEndianness  = errors.New("multi-byte read before source endianness is set")
	ErrNarrowDestination  = errors.New("destination narrower than wire width")
	ErrBadWidth           = errors.New("unsupported wire width")
	ErrUnsupportedPointer = errors.New("unsupported destination type")
)

// IsShortRead reports whether err was caused by the stream ending mid-value.
func IsShortRead(err error) bool {
	return errors.Is(err, ErrShortRead)
}

// Cursor reads fixed-width unsigned values from a seekable source, swapping
// bytes whenever the source byte order differs from the host's.
type Cursor struct {
	r      io.ReadSeeker
	host   Endianness
	source Endianness
	size   int64
	buf    [8]byte
}

func NewCursor(r io.ReadSeeker) *Cursor {
	return &Cursor{
		r:    r,
		host: HostEndianness(),
		size: -1,
	}
}

func (c *Cursor) SetEndianness(e Endianness) { c.source = e }
func (c *Cursor) Endianness() Endianness     { return c.source }

func (c *Cursor) ByteOrder() (binary.ByteOrder, error) {
	order := c.source.ByteOrder()
	if order == nil {
		return nil, errors.WithStack(ErrUnknownEndianness)
	}
	return order, nil
}

func (c *Cursor) Tell() (int64, error) {
	pos, err := c.r.Seek(0, io.SeekCurrent)
	return pos, errors.Wrap(err, "seek failed")
}

// Seek moves to an absolute offset. Seeking past the end is allowed; the
// next read reports the short read.
func (c *Cursor) Seek(off uint64) error {
	if off > math.MaxInt64 {
		return errors.Wrapf(ErrShortRead, "offset 0x%x out of range", off)
	}
	_, err := c.r.Seek(int64(off), io.SeekStart)
	return errors.Wrapf(err, "seek to 0x%x failed", off)
}

// Size is measured once; the source must not change while a cursor uses it.
func (c *Cursor) Size() (int64, error) {
	if c.size >= 0 {
		return c.size, nil
	}
	pos, err := c.Tell()
	if err != nil {
		return 0, err
	}
	end, err := c.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "seek to end failed")
	}
	if _, err := c.r.Seek(pos, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "seek failed")
	}
	c.size = end
	return end, nil
}

func (c *Cursor) Remaining() (int64, error) {
	size, err := c.Size()
	if err != nil {
		return 0, err
	}
	pos, err := c.Tell()
	if err != nil {
		return 0, err
	}
	if pos > size {
		return 0, nil
	}
	return size - pos, nil
}

func (c *Cursor) fill(p []byte) error {
	if _, err := io.ReadFull(c.r, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Wrapf(ErrShortRead, "wanted %d bytes", len(p))
		}
		return errors.Wrap(err, "read failed")
	}
	return nil
}

// Read reads one value of wire width w and returns it widened to 64 bits.
func (c *Cursor) Read(w Width) (uint64, error) {
	switch w {
	case Byte, Half, Word, Double:
	default:
		return 0, errors.Wrapf(ErrBadWidth, "width %d", w)
	}
	if w > Byte && c.source == Unknown {
		return 0, errors.WithStack(ErrUnknownEndianness)
	}
	p := c.buf[:w]
	if err := c.fill(p); err != nil {
		return 0, err
	}
	if w > Byte && c.host != c.source {
		Swap(p)
	}
	host := c.host.ByteOrder()
	switch w {
	case Half:
		return uint64(host.Uint16(p)), nil
	case Word:
		return uint64(host.Uint32(p)), nil
	case Double:
		return host.Uint64(p), nil
	}
	return uint64(p[0]), nil
}

func (c *Cursor) Uint8() (uint8, error) {
	v, err := c.Read(Byte)
	return uint8(v), err
}

func (c *Cursor) Uint16() (uint16, error) {
	v, err := c.Read(Half)
	return uint16(v), err
}

func (c *Cursor) Uint32() (uint32, error) {
	v, err := c.Read(Word)
	return uint32(v), err
}

func (c *Cursor) Uint64() (uint64, error) {
	return c.Read(Double)
}

// ReadInto reads a value of wire width w into dst, which must point to an
// unsigned integer at least w bytes wide. Values are zero-extended.
func (c *Cursor) ReadInto(dst interface{}, w Width) error {
	var dw Width
	switch dst.(type) {
	case *uint8:
		dw = Byte
	case *uint16:
		dw = Half
	case *uint32:
		dw = Word
	case *uint64:
		dw = Double
	default:
		return errors.Wrapf(ErrUnsupportedPointer, "%T", dst)
	}
	if dw < w {
		return errors.Wrapf(ErrNarrowDestination, "%d-byte value into %T", w, dst)
	}
	v, err := c.Read(w)
	if err != nil {
		return err
	}
	switch d := dst.(type) {
	case *uint8:
		*d = uint8(v)
	case *uint16:
		*d = uint16(v)
	case *uint32:
		*d = uint32(v)
	case *uint64:
		*d = v
	}
	return nil
}

// ReadBytes reads exactly n raw bytes. The length is checked against the
// rest of the stream before anything is allocated.
func (c *Cursor) ReadBytes(n uint64) ([]byte, error) {
	rem, err := c.Remaining()
	if err != nil {
		return nil, err
	}
	if n > uint64(rem) {
		return nil, errors.Wrapf(ErrShortRead, "wanted %d bytes, %d left", n, rem)
	}
	p := make([]byte, n)
	if err := c.fill(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unpack decodes a fixed-layout record in the source byte order.
func (c *Cursor) Unpack(v interface{}) error {
	order, err := c.ByteOrder()
	if err != nil {
		return err
	}
	size, err := struc.Sizeof(v)
	if err != nil {
		return errors.Wrap(err, "struc.Sizeof() failed")
	}
	rem, err := c.Remaining()
	if err != nil {
		return err
	}
	if int64(size) > rem {
		return errors.Wrapf(ErrShortRead, "record of %d bytes, %d left", size, rem)
	}
	if err := struc.UnpackWithOrder(c.r, v, order); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Wrap(ErrShortRead, "struc.Unpack() failed")
		}
		return errors.Wrap(err, "struc.Unpack() failed")
	}
	return nil
}

// CString reads up to and including a NUL byte and returns what preceded it.
// Hitting the end of the stream first is a short read.
func (c *Cursor) CString() (string, error) {
	var s []byte
	for {
		b, err := c.Uint8()
		if err != nil {
			return "", errors.Wrap(err, "unterminated string")
		}
		if b == 0 {
			return string(s), nil
		}
		s = append(s, b)
	}
}

// CStringAt reads a string at an absolute offset without moving the cursor.
func (c *Cursor) CStringAt(off uint64) (string, error) {
	pos, err := c.Tell()
	if err != nil {
		return "", err
	}
	if err := c.Seek(off); err != nil {
		return "", err
	}
	s, err := c.CString()
	if _, serr := c.r.Seek(pos, io.SeekStart); serr != nil && err == nil {
		err = errors.Wrap(serr, "seek failed")
	}
	if err != nil {
		return "", err
	}
	return s, nil
}

// Align consumes padding until the position is a multiple of n.
func (c *Cursor) Align(n uint64) error {
	if n <= 1 {
		return nil
	}
	pos, err := c.Tell()
	if err != nil {
		return err
	}
	for pad := (n - uint64(pos)%n) % n; pad > 0; pad-- {
		if _, err := c.Uint8(); err != nil {
			return errors.Wrap(err, "alignment padding")
		}
	}
	return nil
}
