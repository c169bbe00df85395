package main

import (
	"fmt"
	"os"

	"github.com/smartcontractkit/corks/cmd/corks"
)

func main() {
	rootCmd := corks.BuildCorksCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
