// Command nanocrud serves a record store over the CRUD routes and manages it
// from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	cli := NewCLI()
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
