// Command jumbomem-rankscan is the standalone helper program of
// spec.md §6: given a saved peer roster, it enumerates environment
// variables that look like a rank-identification variable. It is a
// thin wrapper around `jumbomem rank-scan` so the launcher contract's
// helper program can be invoked without depending on the rest of the
// CLI surface.
package main

import (
	"fmt"
	"os"

	"github.com/dsmmcken/jumbomem/internal/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	root.SetArgs(append([]string{"rank-scan"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
