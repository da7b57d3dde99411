// Command pinwatch watches GPIO pins for edge events and runs handler
// scripts named after the pin that fired.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pinwatch: %v\n", err)
		os.Exit(1)
	}
}
