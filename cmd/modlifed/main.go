package main

import (
	"fmt"
	"os"
)

// osExit is swapped out in tests.
var osExit = os.Exit

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		osExit(1)
	}
}
