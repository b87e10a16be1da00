package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Names of the WorldBlob rows read by the database provider.
const (
	DimensionCodecBlob = "dimension_codec"
	DimensionBlob      = "dimension"
	DefaultChunkBlob   = "default_chunk"
)

// WorldBlob is a named piece of pre-serialized world data.
type WorldBlob struct {
	Name      string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// ChunkBlob is the captured chunk data frame for one column.
type ChunkBlob struct {
	X         int32  `gorm:"primaryKey;autoIncrement:false"`
	Z         int32  `gorm:"primaryKey;autoIncrement:false"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// FindWorldBlob returns the blob with the given name or nil if there is none.
func FindWorldBlob(db *gorm.DB, name string) (*WorldBlob, error) {
	var blob WorldBlob
	err := db.Where("name = ?", name).First(&blob).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &blob, nil
}

// SaveWorldBlob inserts blob or replaces the existing one with the same name.
func SaveWorldBlob(db *gorm.DB, blob *WorldBlob) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(blob).Error
}

// FindChunkBlob returns the chunk at x, z or nil if there is none.
func FindChunkBlob(db *gorm.DB, x, z int32) (*ChunkBlob, error) {
	var blob ChunkBlob
	err := db.Where("x = ? AND z = ?", x, z).First(&blob).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &blob, nil
}

// SaveChunkBlob inserts blob or replaces the existing chunk at the same coordinates.
func SaveChunkBlob(db *gorm.DB, blob *ChunkBlob) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(blob).Error
}

// CountChunkBlobs returns the number of stored chunks.
func CountChunkBlobs(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&ChunkBlob{}).Count(&count).Error
	return count, err
}
