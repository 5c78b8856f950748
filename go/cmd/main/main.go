package main

import (
	"github.com/lunixbochs/highelf/go/cmd"

	_ "github.com/lunixbochs/highelf/go/cmd/dtb"
	_ "github.com/lunixbochs/highelf/go/cmd/elf"
	_ "github.com/lunixbochs/highelf/go/cmd/info"
)

func main() { cmd.Main() }
