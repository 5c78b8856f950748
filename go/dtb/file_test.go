package dtb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/highelf/go/models"
)

func decodeBytes(data []byte) *File {
	f := New(nil)
	f.Decode(bytes.NewReader(data))
	return f
}

func requireLoaded(t *testing.T, f *File) {
	require.Equal(t, Loaded, f.Status(), "err: %v", f.Err())
	require.NoError(t, f.Err())
}

func TestDecodeSoc(t *testing.T) {
	f := decodeBytes(socFixture().build())
	requireLoaded(t, f)

	require.Equal(t, []ReserveEntry{{Address: 0x1000, Size: 0x200}}, f.Reservations)
	require.Equal(t, uint32(17), f.Header.Version)
	require.Equal(t, "", f.Root.Name)
	require.Len(t, f.Root.Children, 1)

	soc := f.Root.Children[0]
	require.Equal(t, "soc", soc.Name)
	require.Empty(t, soc.Children)
	require.Equal(t, []Prop{{Name: "compatible", Data: []byte{0x78, 0x00}}}, soc.Props)
}

func TestLoadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.dtb")
	require.NoError(t, os.WriteFile(path, socFixture().build(), 0644))
	f, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, path, f.Path)
	require.NotNil(t, f.Lookup("/soc"))
}

func TestLoadSnappyPath(t *testing.T) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	_, err := w.Write(socFixture().build())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := filepath.Join(t.TempDir(), "board.dtb.sz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	f, err := Open(path, nil)
	require.NoError(t, err)
	require.Len(t, f.Root.Children, 1)
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "missing.dtb"), nil)
	require.Error(t, err)
	require.Equal(t, BadFile, f.Status())
}

func TestLoadOnce(t *testing.T) {
	data := socFixture().build()
	f := decodeBytes(data)
	requireLoaded(t, f)
	require.Equal(t, Loaded, f.Decode(bytes.NewReader(data)))
	require.ErrorIs(t, f.Err(), ErrAlreadyLoaded)
}

func TestEmptyReservationMap(t *testing.T) {
	b := newBuilder()
	b.begin("").end().finish()
	f := decodeBytes(b.build())
	requireLoaded(t, f)
	require.NotNil(t, f.Reservations)
	require.Empty(t, f.Reservations)
	require.Empty(t, f.Root.Children)
}

func TestNestedTree(t *testing.T) {
	b := newBuilder()
	b.begin("").
		prop("#address-cells", []byte{0, 0, 0, 2}).
		nop().
		begin("cpus").
		begin("cpu@0").prop("reg", []byte{0, 0, 0, 0}).end().
		begin("cpu@1").prop("reg", []byte{0, 0, 0, 1}).end().
		end().
		begin("memory@80000000").prop("device_type", []byte("memory\x00")).prop("empty", nil).end().
		end().
		nop().
		finish()
	f := decodeBytes(b.build())
	requireLoaded(t, f)

	root := f.Root
	require.Len(t, root.Props, 1)
	require.Len(t, root.Children, 2)
	cpus := root.Child("cpus")
	require.NotNil(t, cpus)
	require.Len(t, cpus.Children, 2)
	require.Equal(t, []byte{0, 0, 0, 1}, cpus.Children[1].Prop("reg").Data)

	mem := f.Lookup("/memory")
	require.NotNil(t, mem)
	require.Equal(t, "memory@80000000", mem.Name)
	require.Equal(t, []byte{}, mem.Prop("empty").Data)
	require.Nil(t, mem.Prop("missing"))

	// ambiguous without the unit address
	require.Nil(t, f.Lookup("/cpus/cpu"))
	require.Equal(t, cpus.Children[0], f.Lookup("/cpus/cpu@0"))
	require.Equal(t, root, f.Lookup("/"))
	require.Nil(t, f.Lookup("cpus"))
	require.Nil(t, f.Lookup("/nope"))

	var paths []string
	require.NoError(t, f.Walk(func(path string, n *Node) error {
		paths = append(paths, path)
		return nil
	}))
	require.Equal(t, []string{"/", "/cpus", "/cpus/cpu@0", "/cpus/cpu@1", "/memory@80000000"}, paths)

	stop := errors.New("stop")
	count := 0
	err := f.Walk(func(string, *Node) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})
	require.Equal(t, stop, err)
	require.Equal(t, 2, count)
}

func TestStructuralViolations(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *dtbBuilder)
		patch func(data []byte)
	}{
		{"two roots", func(b *dtbBuilder) {
			b.begin("").end().begin("").end().finish()
		}, nil},
		{"unmatched end node", func(b *dtbBuilder) {
			b.begin("").end().end().finish()
		}, nil},
		{"top level prop", func(b *dtbBuilder) {
			b.prop("x", nil).begin("").end().finish()
		}, nil},
		{"no root", func(b *dtbBuilder) {
			b.nop().finish()
		}, nil},
		{"end inside node", func(b *dtbBuilder) {
			b.begin("").begin("soc").finish()
		}, nil},
		{"unknown token", func(b *dtbBuilder) {
			b.begin("").token(5).end().finish()
		}, nil},
		{"unknown top level token", func(b *dtbBuilder) {
			b.token(0x77).finish()
		}, nil},
		{"name offset", func(b *dtbBuilder) {
			b.nameOff("compatible")
			b.begin("").propAt(0x100, []byte{1}).end().finish()
		}, nil},
		{"name offset past totalsize before version 3", func(b *dtbBuilder) {
			b.version = 2
			b.begin("").propAt(0x10000, []byte{1}).end().finish()
		}, nil},
		{"strings size larger than the blob", func(b *dtbBuilder) {
			b.nameOff("compatible")
			b.begin("").propAt(0x10000, []byte{1}).end().finish()
		}, func(data []byte) {
			binary.BigEndian.PutUint32(data[32:], 0x20000)
		}},
		{"unterminated name", func(b *dtbBuilder) {
			b.begin("").propAt(0, []byte{1}).end().finish()
			b.strings.WriteString("abc")
		}, nil},
		{"name runs past strings block", func(b *dtbBuilder) {
			b.begin("").prop("compatible", []byte{1}).end().finish()
		}, func(data []byte) {
			binary.BigEndian.PutUint32(data[32:], 3)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			tt.build(b)
			data := b.build()
			if tt.patch != nil {
				tt.patch(data)
			}
			f := decodeBytes(data)
			require.Equal(t, StructuralViolation, f.Status())
			require.ErrorIs(t, f.Err(), ErrStructure)
			require.Nil(t, f.Root)
		})
	}
}

func TestNameOffsetUncheckedBeforeVersion3(t *testing.T) {
	build := func(version uint32) []byte {
		b := newBuilder()
		b.version = version
		b.begin("").prop("compatible", []byte{1}).end().finish()
		data := b.build()
		// size_dt_strings
		binary.BigEndian.PutUint32(data[32:], 0)
		return data
	}
	f := decodeBytes(build(2))
	requireLoaded(t, f)
	require.Equal(t, "compatible", f.Root.Props[0].Name)

	require.Equal(t, StructuralViolation, decodeBytes(build(3)).Status())
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	f := New(&models.Config{})
	require.Equal(t, Loaded, f.Decode(bytes.NewReader(socFixture().build())), "err: %v", f.Err())
}

func TestDepthLimit(t *testing.T) {
	build := func(depth int) []byte {
		b := newBuilder()
		for i := 0; i < depth; i++ {
			b.begin("n")
		}
		for i := 0; i < depth; i++ {
			b.end()
		}
		return b.finish().build()
	}
	config := models.DefaultConfig()
	config.MaxNodeDepth = 4

	f := New(config)
	require.Equal(t, Loaded, f.Decode(bytes.NewReader(build(4))), "err: %v", f.Err())

	f = New(config)
	require.Equal(t, StructuralViolation, f.Decode(bytes.NewReader(build(5))))

	// the default limit rejects deep nesting without exhausting the stack
	f = decodeBytes(build(10000))
	require.Equal(t, StructuralViolation, f.Status())
}

func TestBadMagic(t *testing.T) {
	data := socFixture().build()
	data[0] = 0
	f := decodeBytes(data)
	require.Equal(t, BadHeaderMagic, f.Status())
	require.Nil(t, f.Reservations)

	// a short file with the wrong magic is still a magic failure
	f = decodeBytes([]byte{0xfe, 0xed, 0xd0, 0x0d})
	require.Equal(t, BadHeaderMagic, f.Status())
}

func TestBlockOffsets(t *testing.T) {
	for _, field := range []int{2, 3, 4} {
		data := socFixture().build()
		binary.BigEndian.PutUint32(data[field*4:], uint32(len(data))+1)
		f := decodeBytes(data)
		require.Equal(t, StructuralViolation, f.Status(), "header word %d", field)
	}
	data := socFixture().build()
	binary.BigEndian.PutUint32(data[4:], 8)
	require.Equal(t, StructuralViolation, decodeBytes(data).Status())
}

func TestTruncated(t *testing.T) {
	data := socFixture().build()
	structOff := int(binary.BigEndian.Uint32(data[8:]))
	for _, n := range []int{0, 2, 20, headerSize + 8, structOff + 6, structOff + 20, len(data) - 3} {
		f := decodeBytes(data[:n])
		require.Equal(t, IOFailure, f.Status(), "truncated to %d", n)
		require.Nil(t, f.Root)
	}
}

func TestMissingReservationSentinel(t *testing.T) {
	b := socFixture()
	b.noSentinel = true
	f := decodeBytes(b.build())
	require.Equal(t, IOFailure, f.Status())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "BadHeaderMagic", BadHeaderMagic.String())
	require.Equal(t, "Status(42)", Status(42).String())
}
