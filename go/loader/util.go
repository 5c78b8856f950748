package loader

import (
	"io"
)

// getMagic reads the first four bytes and rewinds. A short file yields
// zero padding.
func getMagic(r io.ReadSeeker) []byte {
	ret := make([]byte, 4)
	io.ReadFull(r, ret)
	r.Seek(0, io.SeekStart)
	return ret
}
