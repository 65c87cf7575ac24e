// Command completiond registers a completion device with an in-process host
// framework and drives it, either through a scripted scenario or an
// interactive terminal UI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
