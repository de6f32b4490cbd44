package main

import (
	"fmt"
	"os"

	"nicetab/api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tabctl:", err)
		os.Exit(1)
	}
}
