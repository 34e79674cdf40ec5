package main

import (
	"fmt"
	"os"

	"github.com/pondwatch/pondwatch-go/cmd"
	"github.com/pondwatch/pondwatch-go/internal/conf"
)

func main() {
	settings := conf.Setting()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
