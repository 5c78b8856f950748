package stream

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/cpu"
)

type Endianness int

const (
	Unknown Endianness = iota
	Big
	Little
)

func (e Endianness) String() string {
	switch e {
	case Big:
		return "big"
	case Little:
		return "little"
	default:
		return "unknown"
	}
}

// ByteOrder returns nil for Unknown.
func (e Endianness) ByteOrder() binary.ByteOrder {
	switch e {
	case Big:
		return binary.BigEndian
	case Little:
		return binary.LittleEndian
	}
	return nil
}

var (
	hostOnce       sync.Once
	hostEndianness Endianness
)

// HostEndianness is computed on first use and never changes afterwards.
func HostEndianness() Endianness {
	hostOnce.Do(func() {
		if cpu.IsBigEndian {
			hostEndianness = Big
		} else {
			hostEndianness = Little
		}
	})
	return hostEndianness
}

// Swap reverses p in place and returns it. It is the only byte-order
// correction in this package; every width goes through it.
func Swap(p []byte) []byte {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
	return p
}

func Swap16(v uint16) uint16 {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return binary.LittleEndian.Uint16(Swap(b[:]))
}

func Swap32(v uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return binary.LittleEndian.Uint32(Swap(b[:]))
}

func Swap64(v uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return binary.LittleEndian.Uint64(Swap(b[:]))
}
