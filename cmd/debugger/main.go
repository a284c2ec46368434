package main

import (
	"os"

	"github.com/nullicist-aakash/debugger/cmd/debugger/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
