// prefexport exports a macOS preference domain to a sorted XML property list.
package main

import (
	"os"

	"github.com/hupe1980/prefexport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
