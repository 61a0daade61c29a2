package main

import (
	"os"
	"path/filepath"
)

func main() {
	os.Args[0] = filepath.Base(os.Args[0])
	os.Exit(Run(os.Args))
}
