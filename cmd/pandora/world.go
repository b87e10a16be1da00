package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pandora-mc/pandora/internal"
	"github.com/pandora-mc/pandora/internal/core"
	"github.com/pandora-mc/pandora/internal/core/data"
)

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "World data management tools",
}

var worldImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copies the world files named in the config into the configured database",
	Run:   WorldImportCommand,
}

func WorldImportCommand(cmd *cobra.Command, args []string) {
	config := loadConfig()
	if config.World.Engine != data.EngineSQLite && config.World.Engine != data.EnginePostgres {
		fmt.Printf("world.engine must be %s or %s to import world data, got %q\n",
			data.EngineSQLite, data.EnginePostgres, config.World.Engine)
		os.Exit(1)
	}

	if err := importWorld(config); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func importWorld(config *core.Config) error {
	db, err := internal.OpenDatabase(config)
	if err != nil {
		return err
	}
	defer data.Close(db)

	result, err := data.Import(db, internal.FileProvider(config))
	if err != nil {
		return fmt.Errorf("error importing world data: %w", err)
	}
	fmt.Printf("imported %d world blobs and %d chunks\n", result.Blobs, result.Chunks)
	return nil
}
