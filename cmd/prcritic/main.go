package main

import (
	"os"

	"github.com/dshills/prcritic/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
