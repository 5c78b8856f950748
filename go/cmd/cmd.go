package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/models"
)

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

// Set accepts repeated flags and comma-separated lists.
func (s *strslice) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// DumpCmd runs a decoder over each file named on the command line.
type DumpCmd struct {
	Config  *models.Config
	Printer *models.Printer
	Flags   *flag.FlagSet

	SetupFlags func() error
	// RunFile handles one path. RunFiles, when set, takes every path at once
	// instead.
	RunFile  func(path string) error
	RunFiles func(paths []string) error

	Stderr io.Writer
}

func NewDumpCmd(name string) *DumpCmd {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &DumpCmd{Flags: fs, Stderr: os.Stderr}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints an error, and a stacktrace if one is available.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	var st stackTracer
	if !errors.As(err, &st) {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range st.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		frame := fmt.Sprintf("%+s", f)
		tmp := strings.SplitN(frame, "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	widths := make([]int, 2)
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if len(f[i]) > widths[i] {
				widths[i] = len(f[i])
			}
		}
	}
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(w, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(w, "%s()\n", f[2])
	}
}

// NewLogger writes logfmt to w, dropping debug lines unless verbose.
func NewLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

// Run parses argv, loads the configuration, and returns the exit status.
func (c *DumpCmd) Run(argv []string) int {
	fs := c.Flags
	configPath := fs.String("config", "", "load configuration from <file> instead of the user config folder")
	color := fs.Bool("color", false, "force colored output")
	verbose := fs.Bool("v", false, "log decoder status transitions")
	hash := fs.Bool("hash", false, "print an xxhash64 digest of each payload")
	sortNames := fs.Bool("sort", false, "sort by name (natural order) instead of file order")
	var only strslice
	fs.Var(&only, "only", "only show these names (glob patterns, repeatable or comma-separated)")

	fs.SetOutput(c.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.Stderr, "Usage: %s [options] <file> [file...]\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(c.Stderr, flags, 80)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			panic(err)
		}
	}
	if err := fs.Parse(argv[1:]); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	var config *models.Config
	var err error
	if *configPath != "" {
		config, err = models.LoadConfigFile(*configPath)
	} else {
		config, err = models.LoadConfig()
	}
	if err != nil {
		PrintError(c.Stderr, err)
		return 1
	}
	// flags given explicitly win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "color":
			config.Color = *color
		case "v":
			config.Verbose = *verbose
		case "hash":
			config.Hash = *hash
		case "sort":
			config.Sort = *sortNames
		case "only":
			config.Only = only
		}
	})
	config.Logger = NewLogger(c.Stderr, config.Verbose)
	c.Config = config
	if c.Printer == nil {
		c.Printer = models.NewStdoutPrinter(config.Color)
	}

	if c.RunFiles != nil {
		if err := c.RunFiles(fs.Args()); err != nil {
			PrintError(c.Stderr, err)
			return 1
		}
		return 0
	}
	status := 0
	for _, path := range fs.Args() {
		if err := c.RunFile(path); err != nil {
			level.Debug(config.Logger).Log("msg", "command failed", "path", path, "err", err)
			PrintError(c.Stderr, err)
			status = 1
		}
	}
	return status
}
