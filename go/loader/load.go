// Package loader picks a decoder for a file by its magic bytes.
package loader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/dtb"
	"github.com/lunixbochs/highelf/go/elf"
	"github.com/lunixbochs/highelf/go/models"
	"github.com/lunixbochs/highelf/go/stream"
)

var UnknownMagic = errors.New("Could not identify file magic.")

type Kind int

const (
	Unknown Kind = iota
	Elf
	Dtb
)

func (k Kind) String() string {
	switch k {
	case Elf:
		return "elf"
	case Dtb:
		return "dtb"
	}
	return "unknown"
}

func MatchElf(r io.ReadSeeker) bool {
	return bytes.Equal(getMagic(r), elf.Magic[:])
}

func MatchDtb(r io.ReadSeeker) bool {
	return binary.BigEndian.Uint32(getMagic(r)) == dtb.Magic
}

func Sniff(r io.ReadSeeker) Kind {
	if MatchElf(r) {
		return Elf
	} else if MatchDtb(r) {
		return Dtb
	}
	return Unknown
}

// Image is whichever decoder matched. Exactly one of Elf and Dtb is set.
type Image struct {
	Kind Kind
	Path string
	Elf  *elf.File
	Dtb  *dtb.File
}

func (i *Image) Status() string {
	if i.Elf != nil {
		return i.Elf.Status().String()
	}
	return i.Dtb.Status().String()
}

// LoadFile opens path (inflating it if compressed) and decodes it with the
// decoder its magic selects. A decode failure returns the image alongside
// the decoder's error so callers can report the status.
func LoadFile(path string, config *models.Config) (*Image, error) {
	if config == nil {
		config = models.DefaultConfig()
	}
	src, err := stream.Open(path, config.MaxInflatedSize)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	img, err := Load(src, config)
	if img != nil {
		img.Path = path
		if img.Elf != nil {
			img.Elf.Path = path
		} else {
			img.Dtb.Path = path
		}
	}
	return img, err
}

func Load(r io.ReadSeeker, config *models.Config) (*Image, error) {
	img := &Image{Kind: Sniff(r)}
	switch img.Kind {
	case Elf:
		img.Elf = elf.New(config)
		if img.Elf.Decode(r) != elf.Loaded {
			return img, img.Elf.Err()
		}
	case Dtb:
		img.Dtb = dtb.New(config)
		if img.Dtb.Decode(r) != dtb.Loaded {
			return img, img.Dtb.Err()
		}
	default:
		return nil, errors.WithStack(UnknownMagic)
	}
	return img, nil
}
