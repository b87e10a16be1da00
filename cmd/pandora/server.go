package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pandora-mc/pandora/internal"
	"github.com/pandora-mc/pandora/internal/core"
)

// ServerCommand is the main entrypoint for running pandora.
func ServerCommand(cmd *cobra.Command, args []string) {
	config := loadConfig()
	fmt.Println("using configuration directory:", ConfigFlag)

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the servers down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	// Start up the controller to handle all of the resources and server init.
	controller := &internal.Controller{
		Config: config,
	}
	if err := controller.Start(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	fmt.Println("shut down")
}

// loadConfig reads the config from ConfigFlag, applies the command line
// overrides and changes to the config directory so that any relative paths in
// the config file will resolve.
func loadConfig() *core.Config {
	config, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if LogLevelFlag != "" {
		config.Logging.LogLevel = LogLevelFlag
	}

	if err := os.Chdir(ConfigFlag); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}
	return config
}

// exitHandler cancels the server context on the first signal and exits
// immediately on the second.
func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
