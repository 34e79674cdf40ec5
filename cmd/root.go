// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pondwatch/pondwatch-go/cmd/analyze"
	"github.com/pondwatch/pondwatch-go/cmd/serve"
	"github.com/pondwatch/pondwatch-go/internal/buildinfo"
	"github.com/pondwatch/pondwatch-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "pondwatch",
		Short:   "PondWatch-Go acoustic water quality monitoring",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return nil
			}
			loaded, err := conf.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config %s: %w", configPath, err)
			}
			*settings = *loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config.yaml, defaults to the standard search locations")

	rootCmd.AddCommand(
		serve.Command(settings),
		analyze.Command(settings),
	)

	return rootCmd
}
