package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is one ingested source file, scoped to exactly one (user_id,
// space_id). Deleting a Document cascades to its Chunks and ImageAssets at
// both the MetaStore and SearchIndex layers (Ingestor.Delete, §4.H).
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_document_tenant" json:"user_id"`
	SpaceID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_document_tenant" json:"space_id"`
	SourceType   string         `gorm:"column:source_type;not null" json:"source_type"` // pdf|html|office|json|md|txt|image
	OriginalName string         `gorm:"column:original_name;not null" json:"original_name"`
	// Title is a human-facing title distinct from OriginalName (the raw
	// upload file name): extracted from document content where available
	// (e.g. a PDF's title metadata or first heading), falling back to
	// OriginalName at ingest time. Carries its own lexical-search boost
	// weight, heavier than plain chunk text (spec.md §4.E field boosts).
	Title        string         `gorm:"column:title" json:"title,omitempty"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64          `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey   string         `gorm:"column:storage_key;not null" json:"storage_key"`
	Status       string         `gorm:"column:status;not null;default:'pending'" json:"status"` // pending|extracting|chunking|indexing|ready|failed
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Warning      string         `gorm:"column:warning" json:"warning,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

// Well-known Document.Metadata keys (spec.md §3).
const (
	MetaImageCaption       = "image_caption"
	MetaImageCaptionSource = "image_caption_source" // "model" | "fallback"
	MetaImageOCRText       = "image_ocr_text"
	MetaThumbnailURL       = "thumbnail_url"
	MetaStorageBackend     = "storage_backend"
)

// Chunk is one unit of retrievable text belonging to a Document, ordered by
// ChunkIndex within that document. The (document_id, chunk_index) pair is
// unique (enforced at the MetaStore schema level, see db.AutoMigrateAll).
type Chunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_chunk_document" json:"document_id"`
	Document    *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_chunk_tenant" json:"user_id"`
	SpaceID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_chunk_tenant" json:"space_id"`
	ChunkIndex  int            `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Text        string         `gorm:"column:text;not null" json:"text"`
	CharCount   int            `gorm:"column:char_count;not null" json:"char_count"`
	Embedding   datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"embedding,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chunk) TableName() string { return "chunk" }

// ImageAsset is one embedded/extracted image belonging to a Document
// (e.g. a page render, an inline figure). Its caption/OCR text are indexed
// for image search (spec.md §6 /image-search) separately from Chunk text.
type ImageAsset struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_image_document" json:"document_id"`
	Document      *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_image_tenant" json:"user_id"`
	SpaceID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_image_tenant" json:"space_id"`
	StorageKey    string         `gorm:"column:storage_key;not null" json:"storage_key"`
	ThumbnailPath string         `gorm:"column:thumbnail_path" json:"thumbnail_path,omitempty"`
	Caption       string         `gorm:"column:caption" json:"caption,omitempty"`
	CaptionSource string         `gorm:"column:caption_source" json:"caption_source,omitempty"`
	OCRText       string         `gorm:"column:ocr_text" json:"ocr_text,omitempty"`
	// Tags are simple visual tags derived at ingest time (dominant color,
	// orientation, filename tokens, OCR tokens after numeric-noise
	// filtering), stored as a JSON array so Postgres's jsonb containment
	// operators can filter /image-search by tag without a join table.
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`
	NativeWidth  int            `gorm:"column:native_width" json:"native_width,omitempty"`
	NativeHeight int            `gorm:"column:native_height" json:"native_height,omitempty"`
	Embedding    datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"embedding,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ImageAsset) TableName() string { return "image_asset" }

// TagsList decodes Tags back into a plain string slice; a nil/empty Tags
// column decodes to an empty slice rather than an error.
func (i *ImageAsset) TagsList() []string {
	if len(i.Tags) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(i.Tags, &out); err != nil {
		return nil
	}
	return out
}
