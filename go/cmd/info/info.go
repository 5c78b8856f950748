package info

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/lunixbochs/highelf/go/cmd"
	"github.com/lunixbochs/highelf/go/dtb"
	"github.com/lunixbochs/highelf/go/loader"
	"github.com/lunixbochs/highelf/go/models"
)

func countNodes(f *dtb.File) int {
	n := 0
	f.Walk(func(string, *dtb.Node) error {
		n++
		return nil
	})
	return n
}

func summary(img *loader.Image) string {
	switch {
	case img.Elf != nil && img.Elf.Err() == nil:
		f := img.Elf
		return fmt.Sprintf("%s %s machine %#x, %d program headers, %d sections",
			f.Ident.Class, f.Header.Type, f.Header.Machine, len(f.Progs), len(f.Sections))
	case img.Dtb != nil && img.Dtb.Err() == nil:
		f := img.Dtb
		return fmt.Sprintf("version %d, %d reservations, %d nodes",
			f.Header.Version, len(f.Reservations), countNodes(f))
	}
	return ""
}

// Info loads every path and prints one row per file. It fails if any file
// did not load.
func Info(p *models.Printer, config *models.Config, paths []string) error {
	rows := [][]string{{"File", "Kind", "Status", "Summary"}}
	failed := 0
	for _, path := range paths {
		img, err := loader.LoadFile(path, config)
		if err != nil {
			failed++
			level.Info(config.Log()).Log("msg", "load failed", "path", path, "err", err)
		}
		if img == nil {
			rows = append(rows, []string{path, "-", p.Bad("error"), err.Error()})
			continue
		}
		status := img.Status()
		if err != nil {
			status = p.Bad(status)
		}
		rows = append(rows, []string{path, img.Kind.String(), status, summary(img)})
	}
	p.Table(rows)
	if failed > 0 {
		return errors.Errorf("%d of %d files failed to load", failed, len(paths))
	}
	return nil
}

func Main(args []string) int {
	c := cmd.NewDumpCmd("info")
	c.RunFiles = func(paths []string) error {
		return Info(c.Printer, c.Config, paths)
	}
	return c.Run(args)
}

func init() {
	cmd.Register("info", "identify files and report their decode status", Main)
}
