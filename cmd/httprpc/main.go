// Command httprpc serves the demonstration catalog over HTTP and converts
// JSON and CSV streams from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "httprpc:", err)
		os.Exit(1)
	}
}
