// file: main.go
// version: 1.0.0
// guid: a222f88e-66ce-40b1-8aa7-64a59481261c

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/playlist-archiver/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
