package main

import (
	"os"

	"paperrag/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
