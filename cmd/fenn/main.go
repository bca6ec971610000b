package main

import (
	"os"

	"github.com/funvibe/fenn/pkg/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
