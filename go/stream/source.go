package stream

import (
	"bytes"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var ErrTooLarge = errors.New("inflated image exceeds size limit")

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	snappyMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}
)

// Source is an opened input image. Compressed containers are inflated into
// memory up front; plain files are read through the open handle.
type Source struct {
	io.ReadSeeker
	Path  string
	Codec string

	file *os.File
}

// Open opens path for decoding. maxInflated bounds the size of an inflated
// compressed image; zero disables the bound.
func Open(path string, maxInflated int64) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	var magic [10]byte
	n, err := io.ReadFull(f, magic[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, errors.Wrap(err, "reading magic failed")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "seek failed")
	}
	head := magic[:n]

	var r io.Reader
	var codec string
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "gzip.NewReader() failed")
		}
		defer zr.Close()
		r, codec = zr, "gzip"
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "zstd.NewReader() failed")
		}
		defer zr.Close()
		r, codec = zr, "zstd"
	case bytes.HasPrefix(head, snappyMagic):
		r, codec = snappy.NewReader(f), "snappy"
	default:
		return &Source{ReadSeeker: f, Path: path, file: f}, nil
	}

	defer f.Close()
	if maxInflated > 0 {
		r = io.LimitReader(r, maxInflated+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "inflating %s image failed", codec)
	}
	if maxInflated > 0 && int64(len(data)) > maxInflated {
		return nil, errors.Wrapf(ErrTooLarge, "%s image over %d bytes", codec, maxInflated)
	}
	return &Source{ReadSeeker: bytes.NewReader(data), Path: path, Codec: codec}, nil
}

func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
