// The pandora command runs the game server and its related tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ConfigFlag   string
	LogLevelFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pandora",
		Short: "pandora game server and related tools",
		Run:   ServerCommand,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing the server config file")
	rootCmd.PersistentFlags().StringVar(&LogLevelFlag, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	worldCmd.AddCommand(worldImportCmd)
	rootCmd.AddCommand(worldCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
