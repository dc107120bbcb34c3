package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
