// Command bxr indexes a source tree and answers identifier, free-text and
// filename queries against it.
package main

import (
	"os"

	"bxr/cmd/bxr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
