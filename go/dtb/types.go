package dtb

import (
	"fmt"
	"strings"
)

const Magic = 0xd00dfeed

// Structure block tokens
const (
	FDT_BEGIN_NODE = 0x1
	FDT_END_NODE   = 0x2
	FDT_PROP       = 0x3
	FDT_NOP        = 0x4
	FDT_END        = 0x9
)

// Header is the fixed 40-byte fdt_header. All fields are big-endian.
type Header struct {
	Magic           uint32
	TotalSize       uint32
	StructOffset    uint32
	StringsOffset   uint32
	ReserveOffset   uint32
	Version         uint32
	LastCompVersion uint32
	BootCPUID       uint32
	StringsSize     uint32
	StructSize      uint32
}

const headerSize = 40

type ReserveEntry struct {
	Address uint64
	Size    uint64
}

type propHeader struct {
	Len     uint32
	NameOff uint32
}

// Prop is a property name and its raw value bytes.
type Prop struct {
	Name string
	Data []byte
}

// Node owns its properties and children; nothing in the tree is shared.
type Node struct {
	Name     string
	Props    []Prop
	Children []*Node
}

// Child returns the child named name. A name without a unit address
// matches "name@unit" when exactly one child has that base name.
func (n *Node) Child(name string) *Node {
	var match *Node
	count := 0
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if !strings.Contains(name, "@") {
			if base, _, ok := strings.Cut(c.Name, "@"); ok && base == name {
				match = c
				count++
			}
		}
	}
	if count == 1 {
		return match
	}
	return nil
}

func (n *Node) Prop(name string) *Prop {
	for i := range n.Props {
		if n.Props[i].Name == name {
			return &n.Props[i]
		}
	}
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s (%d props, %d children)", n.Name, len(n.Props), len(n.Children))
}
