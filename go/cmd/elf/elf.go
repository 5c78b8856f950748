package elf

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/cmd"
	"github.com/lunixbochs/highelf/go/elf"
	"github.com/lunixbochs/highelf/go/models"
)

// DemangleName demangles a C++ symbol, or the symbol suffix of a
// per-function section such as ".text._Z3foov".
func DemangleName(name string) string {
	if i := strings.Index(name, "._Z"); i >= 0 {
		return name[:i+1] + demangle.Filter(name[i+1:], demangle.NoClones)
	}
	return demangle.Filter(name, demangle.NoClones)
}

func hex(v uint64) string { return fmt.Sprintf("%#x", v) }

// Dump prints the identification, header, program headers and section
// table of a loaded file.
func Dump(p *models.Printer, f *elf.File, config *models.Config) {
	id, h := &f.Ident, &f.Header
	p.Printf("%s %s\n\n", p.Name("File:"), p.Value(f.Path))
	p.Table([][]string{
		{"Field", "Value"},
		{"Class", id.Class.String()},
		{"Data", id.Data.String()},
		{"OS/ABI", fmt.Sprintf("%d (ABI version %d)", id.OSABI, id.ABIVersion)},
		{"Type", h.Type.String()},
		{"Machine", fmt.Sprintf("%#x", h.Machine)},
		{"Entry", hex(h.Entry)},
		{"Flags", fmt.Sprintf("%#x", h.Flags)},
		{"Program headers", fmt.Sprintf("%d at %#x", h.ProgCount, h.ProgOffset)},
		{"Section headers", fmt.Sprintf("%d at %#x", h.SectionCount, h.SectionOffset)},
		{"String table index", fmt.Sprintf("%d", h.StringIndex)},
	})

	if len(f.Progs) > 0 {
		p.Printf("\n%s\n", p.Name("Program headers:"))
		rows := [][]string{{"Type", "Flags", "Offset", "VirtAddr", "PhysAddr", "FileSiz", "MemSiz", "Align"}}
		for _, ph := range f.Progs {
			rows = append(rows, []string{
				ph.Type.String(), elf.ProgFlagString(ph.Flags), hex(ph.Offset), hex(ph.VAddr),
				hex(ph.PAddr), hex(ph.FileSize), hex(ph.MemSize), hex(ph.Align),
			})
		}
		p.Table(rows)
	}

	if len(f.Sections) == 0 {
		return
	}
	idx := make([]int, len(f.Sections))
	for i := range idx {
		idx[i] = i
	}
	name := func(i int) string {
		if config.Demangle {
			return DemangleName(f.Sections[i].Name)
		}
		return f.Sections[i].Name
	}
	idx = cmd.Select(idx, name, config.Only, config.Sort)

	p.Printf("\n%s\n", p.Name("Sections:"))
	head := []string{"Nr", "Name", "Type", "Flags", "Addr", "Offset", "Size", "Link", "Info", "Align", "EntSize"}
	if config.Hash {
		head = append(head, "XXH64")
	}
	rows := [][]string{head}
	for _, i := range idx {
		sh := f.SectionHeaders[i]
		row := []string{
			fmt.Sprintf("[%d]", i), name(i), sh.Type.String(), elf.SectionFlagString(sh.Flags),
			hex(sh.Addr), hex(sh.Offset), hex(sh.Size), fmt.Sprintf("%d", sh.Link),
			fmt.Sprintf("%d", sh.Info), hex(sh.AddrAlign), hex(sh.EntSize),
		}
		if config.Hash {
			digest := "-"
			if sh.Type.HasPayload() {
				digest = cmd.Digest(f.Sections[i].Data)
			}
			row = append(row, digest)
		}
		rows = append(rows, row)
	}
	p.Table(rows)
}

func Main(args []string) int {
	c := cmd.NewDumpCmd("elf")
	var demangleFlag *bool
	c.SetupFlags = func() error {
		demangleFlag = c.Flags.Bool("demangle", false, "demangle C++ names in section names (.text._Z...)")
		return nil
	}
	c.RunFile = func(path string) error {
		if *demangleFlag {
			c.Config.Demangle = true
		}
		f, err := elf.Open(path, c.Config)
		if err != nil {
			return errors.Wrapf(err, "%s: %s", path, f.Status())
		}
		Dump(c.Printer, f, c.Config)
		return nil
	}
	return c.Run(args)
}

func init() {
	cmd.Register("elf", "dump ELF headers, program headers and sections", Main)
}
