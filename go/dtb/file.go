// Package dtb decodes flattened device tree blobs: the header, the memory
// reservation map, and the structure block as a tree of nodes.
package dtb

import (
	"io"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/models"
	"github.com/lunixbochs/highelf/go/stream"
)

var (
	ErrAlreadyLoaded = errors.New("Load() called twice")
	// ErrStructure marks malformed token streams and out of range offsets.
	ErrStructure = errors.New("malformed device tree")
)

func structural(format string, args ...interface{}) error {
	return errors.Wrapf(ErrStructure, format, args...)
}

type File struct {
	Header       Header
	Reservations []ReserveEntry
	Root         *Node

	Path string

	config *models.Config
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
func (f *File) Err() error     { return f.err }

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

func (f *File) Decode(r io.ReadSeeker) Status {
	if f.status != Unloaded {
		f.err = errors.WithStack(ErrAlreadyLoaded)
		return f.status
	}
	return f.decode(r)
}

// Lookup resolves an absolute path such as "/soc/serial@1000".
func (f *File) Lookup(path string) *Node {
	if f.Root == nil || !strings.HasPrefix(path, "/") {
		return nil
	}
	n := f.Root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if n = n.Child(part); n == nil {
			return nil
		}
	}
	return n
}

// Walk visits every node depth first, parents before children. Returning
// an error from fn stops the walk.
func (f *File) Walk(fn func(path string, n *Node) error) error {
	if f.Root == nil {
		return nil
	}
	return walk("/", f.Root, fn)
}

func walk(path string, n *Node, fn func(string, *Node) error) error {
	if err := fn(path, n); err != nil {
		return err
	}
	for _, c := range n.Children {
		child := path + c.Name
		if path != "/" {
			child = path + "/" + c.Name
		}
		if err := walk(child, c, fn); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) finish(status Status, err error) Status {
	f.status = status
	f.err = err
	logger := f.config.Log()
	if status == Loaded {
		level.Debug(logger).Log("msg", "dtb loaded", "path", f.Path, "version", f.Header.Version,
			"reservations", len(f.Reservations), "children", len(f.Root.Children))
	} else {
		level.Debug(logger).Log("msg", "dtb load failed", "path", f.Path, "status", status, "err", err)
	}
	return status
}

// fail sorts a decode error into a status. Anything that is not a
// structural error came from the byte source.
func (f *File) fail(err error, what string) Status {
	err = errors.Wrap(err, what)
	if errors.Is(err, ErrStructure) {
		return f.finish(StructuralViolation, err)
	}
	return f.finish(IOFailure, err)
}

func (f *File) decode(r io.ReadSeeker) Status {
	c := stream.NewCursor(r)
	c.SetEndianness(stream.Big)
	if err := c.Seek(0); err != nil {
		return f.fail(err, "rewind")
	}

	magic, err := c.Uint32()
	if err != nil {
		return f.fail(err, "reading magic")
	}
	if magic != Magic {
		return f.finish(BadHeaderMagic, errors.Errorf("bad magic %#x", magic))
	}
	if err := c.Seek(0); err != nil {
		return f.fail(err, "rewind")
	}
	if err := c.Unpack(&f.Header); err != nil {
		return f.fail(err, "reading header")
	}
	if err := f.checkHeader(); err != nil {
		return f.fail(err, "header")
	}

	if err := f.readReservations(c); err != nil {
		return f.fail(err, "reading memory reservation map")
	}
	if err := f.readStructure(c); err != nil {
		return f.fail(err, "reading structure block")
	}
	return f.finish(Loaded, nil)
}

func (f *File) checkHeader() error {
	h := &f.Header
	if h.TotalSize < headerSize {
		return structural("totalsize %d smaller than the header", h.TotalSize)
	}
	if h.ReserveOffset >= h.TotalSize {
		return structural("off_mem_rsvmap %#x outside totalsize %#x", h.ReserveOffset, h.TotalSize)
	}
	if h.StructOffset >= h.TotalSize {
		return structural("off_dt_struct %#x outside totalsize %#x", h.StructOffset, h.TotalSize)
	}
	// an empty strings block may sit at the very end
	if h.StringsOffset > h.TotalSize {
		return structural("off_dt_strings %#x outside totalsize %#x", h.StringsOffset, h.TotalSize)
	}
	return nil
}

// readReservations collects entries up to the (0, 0) sentinel, which is
// not stored.
func (f *File) readReservations(c *stream.Cursor) error {
	if err := c.Seek(uint64(f.Header.ReserveOffset)); err != nil {
		return err
	}
	f.Reservations = []ReserveEntry{}
	for {
		var e ReserveEntry
		if err := c.Unpack(&e); err != nil {
			return errors.Wrapf(err, "entry %d", len(f.Reservations))
		}
		if e.Address == 0 && e.Size == 0 {
			return nil
		}
		f.Reservations = append(f.Reservations, e)
	}
}

// readStructure decodes the top level of the structure block, which must
// hold exactly one root node followed by FDT_END.
func (f *File) readStructure(c *stream.Cursor) error {
	if err := c.Seek(uint64(f.Header.StructOffset)); err != nil {
		return err
	}
	var root *Node
	for {
		tok, err := c.Uint32()
		if err != nil {
			return err
		}
		switch tok {
		case FDT_BEGIN_NODE:
			if root != nil {
				return structural("second root node")
			}
			if root, err = f.readNode(c, 1); err != nil {
				return err
			}
		case FDT_END_NODE:
			return structural("FDT_END_NODE without a matching FDT_BEGIN_NODE")
		case FDT_PROP:
			return structural("FDT_PROP outside of a node")
		case FDT_NOP:
		case FDT_END:
			if root == nil {
				return structural("no root node")
			}
			f.Root = root
			return nil
		default:
			return structural("unknown token %#x", tok)
		}
	}
}

// readNode is entered just after an FDT_BEGIN_NODE token and returns after
// consuming the matching FDT_END_NODE.
func (f *File) readNode(c *stream.Cursor, depth int) (*Node, error) {
	if depth > f.config.MaxNodeDepth {
		return nil, structural("nesting deeper than %d", f.config.MaxNodeDepth)
	}
	name, err := c.CString()
	if err != nil {
		return nil, errors.Wrap(err, "node name")
	}
	if err := c.Align(4); err != nil {
		return nil, err
	}
	n := &Node{Name: name}
	for {
		tok, err := c.Uint32()
		if err != nil {
			return nil, errors.Wrapf(err, "in node %q", name)
		}
		switch tok {
		case FDT_BEGIN_NODE:
			child, err := f.readNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case FDT_END_NODE:
			return n, nil
		case FDT_PROP:
			p, err := f.readProp(c)
			if err != nil {
				return nil, errors.Wrapf(err, "in node %q", name)
			}
			n.Props = append(n.Props, p)
		case FDT_NOP:
		case FDT_END:
			return nil, structural("FDT_END inside node %q", name)
		default:
			return nil, structural("unknown token %#x in node %q", tok, name)
		}
	}
}

func (f *File) readProp(c *stream.Cursor) (Prop, error) {
	var ph propHeader
	if err := c.Unpack(&ph); err != nil {
		return Prop{}, err
	}
	h := &f.Header
	if h.Version >= 3 && ph.NameOff >= h.StringsSize {
		return Prop{}, structural("property name offset %#x outside %#x-byte strings block", ph.NameOff, h.StringsSize)
	}
	name, err := f.propName(c, ph.NameOff)
	if err != nil {
		return Prop{}, err
	}
	data, err := c.ReadBytes(uint64(ph.Len))
	if err != nil {
		return Prop{}, errors.Wrapf(err, "property %q", name)
	}
	if err := c.Align(4); err != nil {
		return Prop{}, err
	}
	return Prop{Name: name, Data: data}, nil
}

// propName reads the property name at nameoff in the strings block. The
// offset must land inside both totalsize and the input, and from version 3
// on the terminator must fall inside size_dt_strings. Running off the end of
// an input shorter than totalsize is a truncation, not a bad offset.
func (f *File) propName(c *stream.Cursor, nameoff uint32) (string, error) {
	h := &f.Header
	off := uint64(h.StringsOffset) + uint64(nameoff)
	if off >= uint64(h.TotalSize) {
		return "", structural("property name at %#x outside totalsize %#x", off, h.TotalSize)
	}
	size, err := c.Size()
	if err != nil {
		return "", err
	}
	if off >= uint64(size) {
		return "", structural("property name at %#x past end of file (%#x bytes)", off, size)
	}
	name, err := c.CStringAt(off)
	if err != nil {
		if stream.IsShortRead(err) && uint64(size) >= uint64(h.TotalSize) {
			return "", structural("property name at %#x is unterminated", off)
		}
		return "", errors.Wrap(err, "property name")
	}
	if h.Version >= 3 && uint64(nameoff)+uint64(len(name)) >= uint64(h.StringsSize) {
		return "", structural("property name at %#x runs past the %#x-byte strings block", off, h.StringsSize)
	}
	return name, nil
}
