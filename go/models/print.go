package models

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/mgutz/ansi"
)

var (
	chName  = ansi.ColorCode("default+b:default")
	chValue = ansi.ColorCode("cyan:default")
	chBad   = ansi.ColorCode("red+b:default")
	chDim   = ansi.ColorCode("black+h:default")
)

// Printer writes the column-aligned dumps used by the commands.
type Printer struct {
	W     io.Writer
	Color bool
}

// NewStdoutPrinter colors output only when stdout is a terminal, unless
// force is set.
func NewStdoutPrinter(force bool) *Printer {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &Printer{W: colorable.NewColorableStdout(), Color: force || tty}
}

func (p *Printer) paint(s, color string) string {
	if !p.Color || s == "" {
		return s
	}
	return color + s + ansi.Reset
}

func (p *Printer) Name(s string) string  { return p.paint(s, chName) }
func (p *Printer) Value(s string) string { return p.paint(s, chValue) }
func (p *Printer) Bad(s string) string   { return p.paint(s, chBad) }
func (p *Printer) Dim(s string) string   { return p.paint(s, chDim) }

// Pad right-pads s to width display columns before coloring it, so escape
// codes never count towards alignment.
func (p *Printer) Pad(s, color string, width int) string {
	return p.paint(runewidth.FillRight(s, width), color)
}

func (p *Printer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p.W, format, a...)
}

// Table prints rows with every column padded to its widest cell. The first
// row is treated as a header.
func (p *Printer) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for n, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			color := chValue
			if n == 0 {
				color = chName
			}
			if i == len(row)-1 {
				cells[i] = p.paint(cell, color)
			} else {
				cells[i] = p.Pad(cell, color, widths[i])
			}
		}
		fmt.Fprintln(p.W, strings.Join(cells, "  "))
	}
}

// Hex formats b as space-separated byte pairs, eliding the middle of long
// payloads.
func Hex(b []byte, max int) string {
	var parts []string
	for i, c := range b {
		if max > 0 && i == max/2 && len(b) > max {
			parts = append(parts, "..")
			for _, c := range b[len(b)-max/2:] {
				parts = append(parts, fmt.Sprintf("%02x", c))
			}
			break
		}
		parts = append(parts, fmt.Sprintf("%02x", c))
	}
	return strings.Join(parts, " ")
}
