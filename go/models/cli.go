package models

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// PrintFlags lists flags with their defaults, wrapping usage text to fit
// within width columns.
func PrintFlags(w io.Writer, flags []*flag.Flag, width int) {
	wname, wdef := 0, 0
	for _, f := range flags {
		wname = max(wname, runewidth.StringWidth(f.Name))
		wdef = max(wdef, runewidth.StringWidth(defValue(f)))
	}
	indent := wname + wdef + 7
	wdesc := width - indent
	if wdesc < 20 {
		wdesc = 20
	}
	for _, f := range flags {
		fmt.Fprintf(w, "  -%s %s ", runewidth.FillRight(f.Name, wname), runewidth.FillRight(defValue(f), wdef+2))
		for i, line := range wrap(f.Usage, wdesc) {
			if i > 0 {
				fmt.Fprint(w, strings.Repeat(" ", indent))
			}
			fmt.Fprintln(w, line)
		}
	}
}

func defValue(f *flag.Flag) string {
	if f.DefValue == "" || f.DefValue == "[]" || f.DefValue == "false" {
		return ""
	}
	return "(" + f.DefValue + ")"
}

// wrap splits s on spaces into lines no wider than width. Words wider than
// width get a line of their own.
func wrap(s string, width int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		if line != "" && runewidth.StringWidth(line)+1+runewidth.StringWidth(word) > width {
			lines = append(lines, line)
			line = ""
		}
		if line != "" {
			line += " "
		}
		line += word
	}
	if line != "" || len(lines) == 0 {
		lines = append(lines, line)
	}
	return lines
}
