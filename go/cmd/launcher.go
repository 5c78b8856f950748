package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

type command struct {
	name, desc string
	main       func(args []string) int
}

var commands = make(map[string]*command)
var pad int

// Register adds a subcommand. Subcommand packages call it from init.
func Register(name, desc string, main func(args []string) int) {
	if len(name) > pad {
		pad = len(name)
	}
	commands[name] = &command{name, desc, main}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fstr := fmt.Sprintf("  %%-%ds | %%s\n", pad)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, fstr, name, commands[name].desc)
	}
	fmt.Fprintf(os.Stderr, "\nExample: %s elf -sort -demangle /bin/ls\n\n", os.Args[0])
}

// Main dispatches os.Args[1] to a registered subcommand and exits with its
// status.
func Main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Command '%s' not found.\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	args := append([]string{strings.Join(os.Args[:2], " ")}, os.Args[2:]...)
	os.Exit(cmd.main(args))
}
