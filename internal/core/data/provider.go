package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/pandora-mc/pandora/internal/core/world"
)

// Provider serves world data stored by Import.
type Provider struct {
	DB *gorm.DB
}

var _ world.Provider = (*Provider)(nil)

func (p *Provider) DimensionCodec() ([]byte, error) {
	return p.worldBlob(DimensionCodecBlob)
}

// Dimension returns no data rather than an error if none was imported.
func (p *Provider) Dimension() ([]byte, error) {
	blob, err := FindWorldBlob(p.DB, DimensionBlob)
	if err != nil || blob == nil {
		return nil, err
	}
	return blob.Data, nil
}

func (p *Provider) Chunk(x, z int32) ([]byte, error) {
	blob, err := FindChunkBlob(p.DB, x, z)
	if err != nil {
		return nil, fmt.Errorf("error loading chunk %d,%d: %w", x, z, err)
	}
	if blob != nil {
		return blob.Data, nil
	}
	return p.worldBlob(DefaultChunkBlob)
}

func (p *Provider) worldBlob(name string) ([]byte, error) {
	blob, err := FindWorldBlob(p.DB, name)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", name, err)
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: %s", world.ErrNotFound, name)
	}
	return blob.Data, nil
}

// ImportResult summarizes what Import copied.
type ImportResult struct {
	Blobs  int
	Chunks int
}

// Import copies the files src would serve into the database. Files that
// aren't configured or don't exist are skipped; chunk files are found by
// name in src.ChunkDir.
func Import(db *gorm.DB, src *world.FileProvider) (ImportResult, error) {
	var result ImportResult

	blobs := map[string]string{
		DimensionCodecBlob: src.DimensionCodecFile,
		DimensionBlob:      src.DimensionFile,
		DefaultChunkBlob:   src.DefaultChunkFile,
	}
	for name, path := range blobs {
		if path == "" {
			continue
		}
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return result, fmt.Errorf("error reading %s: %w", path, err)
		}
		if err := SaveWorldBlob(db, &WorldBlob{Name: name, Data: contents}); err != nil {
			return result, fmt.Errorf("error saving %s: %w", name, err)
		}
		result.Blobs++
	}

	if src.ChunkDir == "" {
		return result, nil
	}
	paths, err := filepath.Glob(filepath.Join(src.ChunkDir, "chunk_*_*.bin"))
	if err != nil {
		return result, err
	}
	for _, path := range paths {
		var x, z int32
		if _, err := fmt.Sscanf(filepath.Base(path), "chunk_%d_%d.bin", &x, &z); err != nil {
			continue
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("error reading %s: %w", path, err)
		}
		if err := SaveChunkBlob(db, &ChunkBlob{X: x, Z: z, Data: contents}); err != nil {
			return result, fmt.Errorf("error saving chunk %d,%d: %w", x, z, err)
		}
		result.Chunks++
	}
	return result, nil
}
