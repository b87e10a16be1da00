// Package data stores world blobs in a SQL database through gorm, as an
// alternative to serving them from files.
package data

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported values of the world.engine setting that are backed by a database.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Open connects to the database for engine and migrates the schema. dataSource
// is a file name for sqlite and a DSN for postgres.
func Open(engine, dataSource string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch engine {
	case EngineSQLite:
		dialector = sqlite.Open(dataSource)
	case EnginePostgres:
		dialector = postgres.Open(dataSource)
	default:
		return nil, fmt.Errorf("unsupported database engine %q", engine)
	}

	// By default only log errors but enable full SQL query prints-to-console with debug mode
	log := logger.Default.LogMode(logger.Error)
	if debug {
		log = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := db.AutoMigrate(&WorldBlob{}, &ChunkBlob{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	database, err := db.DB()
	if err != nil {
		return fmt.Errorf("error while getting current connection: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("error while closing database connection: %w", err)
	}
	return nil
}
