package dtb

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/cmd"
	"github.com/lunixbochs/highelf/go/dtb"
	"github.com/lunixbochs/highelf/go/models"
)

func isStrings(data []byte) bool {
	if len(data) < 2 || data[0] == 0 || data[len(data)-1] != 0 {
		return false
	}
	for i, b := range data {
		if b == 0 {
			if i > 0 && data[i-1] == 0 {
				return false
			}
		} else if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

// FormatProp renders a property value the way dtc prints it: a string list,
// 32-bit cells, or a byte string.
func FormatProp(data []byte) string {
	switch {
	case len(data) == 0:
		return ""
	case isStrings(data):
		parts := strings.Split(string(data[:len(data)-1]), "\x00")
		for i, s := range parts {
			parts[i] = strconv.Quote(s)
		}
		return strings.Join(parts, ", ")
	case len(data)%4 == 0:
		cells := make([]string, len(data)/4)
		for i := range cells {
			cells[i] = fmt.Sprintf("0x%08x", binary.BigEndian.Uint32(data[i*4:]))
		}
		return "<" + strings.Join(cells, " ") + ">"
	}
	return "[" + models.Hex(data, 64) + "]"
}

type entry struct {
	path string
	node *dtb.Node
}

// Dump prints the header, the reservation map, and every node with its
// properties.
func Dump(p *models.Printer, f *dtb.File, config *models.Config) {
	h := &f.Header
	p.Printf("%s %s\n\n", p.Name("File:"), p.Value(f.Path))
	p.Table([][]string{
		{"Field", "Value"},
		{"Version", fmt.Sprintf("%d (compatible with %d)", h.Version, h.LastCompVersion)},
		{"Total size", fmt.Sprintf("%#x", h.TotalSize)},
		{"Boot CPU", fmt.Sprintf("%d", h.BootCPUID)},
		{"Structure block", fmt.Sprintf("%#x bytes at %#x", h.StructSize, h.StructOffset)},
		{"Strings block", fmt.Sprintf("%#x bytes at %#x", h.StringsSize, h.StringsOffset)},
		{"Reservation map", fmt.Sprintf("at %#x", h.ReserveOffset)},
	})

	if len(f.Reservations) > 0 {
		p.Printf("\n%s\n", p.Name("Memory reservations:"))
		rows := [][]string{{"Address", "Size"}}
		for _, r := range f.Reservations {
			rows = append(rows, []string{fmt.Sprintf("0x%016x", r.Address), fmt.Sprintf("%#x", r.Size)})
		}
		p.Table(rows)
	}

	var nodes []entry
	f.Walk(func(path string, n *dtb.Node) error {
		nodes = append(nodes, entry{path, n})
		return nil
	})
	nodes = cmd.Select(nodes, func(e entry) string { return e.path }, config.Only, config.Sort)

	p.Printf("\n%s\n", p.Name("Nodes:"))
	for _, e := range nodes {
		p.Printf("%s\n", p.Name(e.path))
		for _, prop := range e.node.Props {
			line := "  " + prop.Name
			if v := FormatProp(prop.Data); v != "" {
				line += " = " + p.Value(v)
			}
			if config.Hash {
				line += "  " + p.Dim(cmd.Digest(prop.Data))
			}
			p.Printf("%s\n", line)
		}
	}
}

func Main(args []string) int {
	c := cmd.NewDumpCmd("dtb")
	c.RunFile = func(path string) error {
		f, err := dtb.Open(path, c.Config)
		if err != nil {
			return errors.Wrapf(err, "%s: %s", path, f.Status())
		}
		Dump(c.Printer, f, c.Config)
		return nil
	}
	return c.Run(args)
}

func init() {
	cmd.Register("dtb", "dump a device tree blob's header, reservations and nodes", Main)
}
