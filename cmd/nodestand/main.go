// Command nodestand is the administration CLI of the argument graph.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd(defaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
