// Package world supplies the pre-serialized dimension and chunk data sent to
// players entering the play state.
package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pandora-mc/pandora/internal/core/bytes"
)

var (
	// ErrNotFound is returned when no data exists for the requested key.
	ErrNotFound = errors.New("world data not found")
	// ErrMalformedChunk is returned for a chunk blob without a valid header.
	ErrMalformedChunk = errors.New("malformed chunk blob")
)

// Provider is a read-only source of world blobs. Implementations must be safe
// to call from any number of connections at once.
type Provider interface {
	// DimensionCodec returns the NBT registry of every dimension type.
	DimensionCodec() ([]byte, error)
	// Dimension returns the NBT description of the dimension players spawn
	// in. It may be empty.
	Dimension() ([]byte, error)
	// Chunk returns the blob for the chunk column at x, z. The blob is a
	// captured chunk data frame and still carries its own header.
	Chunk(x, z int32) ([]byte, error)
}

// StripChunkHeader removes the "VarInt length | VarInt id | Int x | Int z"
// header of a captured chunk data frame and returns the rest.
func StripChunkHeader(blob []byte) ([]byte, error) {
	buf := bytes.NewBuffer(blob)
	if _, err := buf.ReadVarInt(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if _, err := buf.ReadVarInt(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if _, err := buf.ReadInt32(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if _, err := buf.ReadInt32(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	return buf.ReadRemaining(), nil
}

// FileProvider reads world data from files on disk.
type FileProvider struct {
	// Path of the dimension codec NBT.
	DimensionCodecFile string
	// Path of the spawn dimension NBT. Blank sends no dimension blob.
	DimensionFile string
	// Directory containing chunk_<x>_<z>.bin files.
	ChunkDir string
	// Served for every chunk missing from ChunkDir. Blank means missing
	// chunks are ErrNotFound.
	DefaultChunkFile string
}

func (p *FileProvider) DimensionCodec() ([]byte, error) {
	return readFile(p.DimensionCodecFile)
}

func (p *FileProvider) Dimension() ([]byte, error) {
	if p.DimensionFile == "" {
		return nil, nil
	}
	return readFile(p.DimensionFile)
}

func (p *FileProvider) Chunk(x, z int32) ([]byte, error) {
	if p.ChunkDir != "" {
		data, err := readFile(filepath.Join(p.ChunkDir, ChunkFileName(x, z)))
		if err == nil || !errors.Is(err, ErrNotFound) {
			return data, err
		}
	}
	if p.DefaultChunkFile == "" {
		return nil, fmt.Errorf("%w: chunk %d,%d", ErrNotFound, x, z)
	}
	return readFile(p.DefaultChunkFile)
}

// ChunkFileName returns the name of the file ChunkDir holds for x, z.
func ChunkFileName(x, z int32) string {
	return fmt.Sprintf("chunk_%d_%d.bin", x, z)
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file configured", ErrNotFound)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return data, nil
}
