package main

import (
	"os"

	"github.com/spf13/afero"
)

func main() {
	if err := newCmd(afero.NewOsFs()).Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}
