// Package ingestor orchestrates turning an uploaded file into retrievable
// Chunks/ImageAssets (spec.md §4.H). Grounded on
// internal/ingestion/extractor/extractor.go's DownloadMaterialToTemp/
// UploadLocalToGCS/PersistSegmentsAsChunks sequencing, generalized to
// spec.md's seven-step algorithm: blob persist -> extract -> chunk+embed ->
// MetaStore transaction -> best-effort SearchIndex dual-write -> cache bump
// -> Activity.
package ingestor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/chunker"
	"github.com/yungbote/ragcore/internal/clients/blobstore"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/clients/redis"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/extractor"
	"github.com/yungbote/ragcore/internal/httpx"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/searchindex"
	"github.com/yungbote/ragcore/internal/types"
)

type Ingestor struct {
	db         *gorm.DB
	documents  repos.DocumentRepo
	chunks     repos.ChunkRepo
	images     repos.ImageAssetRepo
	spaces     repos.SpaceRepo
	activities repos.ActivityRepo
	blobs      blobstore.BlobStore
	extractor  *extractor.Extractor
	embedder   generator.Embedder
	index      searchindex.SearchIndex
	cache      cache.Cacher
	bus        redis.ActivityBus
	cfg        config.IngestConfig
	searchCfg  config.SearchConfig
	log        *logger.Logger
}

func New(
	db *gorm.DB,
	documents repos.DocumentRepo,
	chunks repos.ChunkRepo,
	images repos.ImageAssetRepo,
	spaces repos.SpaceRepo,
	activities repos.ActivityRepo,
	blobs blobstore.BlobStore,
	ext *extractor.Extractor,
	embedder generator.Embedder,
	index searchindex.SearchIndex,
	c cache.Cacher,
	bus redis.ActivityBus,
	cfg config.IngestConfig,
	searchCfg config.SearchConfig,
	log *logger.Logger,
) *Ingestor {
	return &Ingestor{
		db: db, documents: documents, chunks: chunks, images: images, spaces: spaces,
		activities: activities, blobs: blobs, extractor: ext, embedder: embedder, index: index,
		cache: c, bus: bus, cfg: cfg, searchCfg: searchCfg, log: log.With("component", "Ingestor"),
	}
}

// SpacesForUser lists every space id owned by userID, for the `all:true`
// branch of POST /admin/reindex.
func (ing *Ingestor) SpacesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	spaces, err := ing.spaces.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(spaces))
	for _, s := range spaces {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Ingest runs the full pipeline for one uploaded file. On success it returns
// the Document row with status "ready"; on a pipeline failure it marks the
// row "failed" in MetaStore and returns a nil Document with the error, except
// for an unsupported file type, where the Document is returned alongside the
// error.
func (ing *Ingestor) Ingest(ctx context.Context, userID, spaceID uuid.UUID, originalName, mimeType string, data []byte) (*types.Document, error) {
	if int64(len(data)) > ing.cfg.MaxBytesDownload {
		return nil, apperr.Validation("file exceeds maximum upload size")
	}

	storageKey := fmt.Sprintf("%s/%s/%s-%s", userID, spaceID, uuid.New().String(), originalName)
	doc := &types.Document{
		UserID:       userID,
		SpaceID:      spaceID,
		SourceType:   sourceTypeFor(mimeType, originalName),
		OriginalName: originalName,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		StorageKey:   storageKey,
		Status:       "pending",
	}
	doc, err := ing.documents.Create(ctx, nil, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	ing.emit(userID, spaceID, "ingest.started", doc.ID, nil)

	// Step 1: blob persist, retried with bounded exponential backoff
	// (spec.md §4.H).
	putErr := httpx.WithBackoff(ctx, ing.cfg.RetryAttempts, ing.cfg.RetryBaseDelay, ing.cfg.RetryMaxDelay, func(ctx context.Context) error {
		return ing.blobs.Put(ctx, storageKey, bytes.NewReader(data))
	})
	if putErr != nil {
		_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "failed", "failed to persist blob")
		ing.emit(userID, spaceID, "ingest.failed", doc.ID, map[string]any{"step": "blob_persist", "error": putErr.Error()})
		return nil, fmt.Errorf("persist blob: %w", putErr)
	}
	_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "extracting", "")

	// Step 2: extract.
	res, err := ing.extractor.Extract(ctx, originalName, mimeType, storageKey, data)
	if err != nil {
		if apperr.Is(err, apperr.KindUnsupported) {
			_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "failed", err.Error())
			ing.emit(userID, spaceID, "ingest.failed", doc.ID, map[string]any{"step": "extract", "error": err.Error()})
			return doc, err
		}
		_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "failed", "extraction failed")
		ing.emit(userID, spaceID, "ingest.failed", doc.ID, map[string]any{"step": "extract", "error": err.Error()})
		return nil, fmt.Errorf("extract: %w", err)
	}

	meta := map[string]any{}
	if res.ImageCaption != "" {
		meta[types.MetaImageCaption] = res.ImageCaption
		meta[types.MetaImageCaptionSource] = res.CaptionSource
	}
	if res.ImageOCRText != "" {
		meta[types.MetaImageOCRText] = res.ImageOCRText
	}
	metaJSON, _ := json.Marshal(meta)

	_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "chunking", "")
	ing.emit(userID, spaceID, "ingest.extracted", doc.ID, map[string]any{"kind": res.ExtractionKind})

	// Step 3: chunk + embed.
	parts := chunker.Split(res.Text, chunker.DefaultOptions(ing.cfg.ChunkSize, ing.cfg.ChunkOverlap))
	var chunkRows []*types.Chunk
	if len(parts) == 0 {
		chunkRows = []*types.Chunk{{
			ID: uuid.New(), DocumentID: doc.ID, UserID: userID, SpaceID: spaceID,
			ChunkIndex: 0, Text: "No extractable content was produced for this file.",
			CharCount: 0, Metadata: datatypes.JSON(`{"kind":"unextractable"}`),
		}}
	} else {
		var embeddings [][]float32
		if ing.embedder != nil {
			err = httpx.WithBackoff(ctx, ing.cfg.RetryAttempts, ing.cfg.RetryBaseDelay, ing.cfg.RetryMaxDelay, func(ctx context.Context) error {
				var embedErr error
				embeddings, embedErr = ing.embedder.EmbedText(ctx, parts)
				return embedErr
			})
			if err != nil {
				ing.log.Warn("embedding failed, storing chunks without vectors", "error", err, "document", doc.ID)
			}
		}
		for i, text := range parts {
			row := &types.Chunk{
				ID: uuid.New(), DocumentID: doc.ID, UserID: userID, SpaceID: spaceID,
				ChunkIndex: i, Text: text, CharCount: len(text),
			}
			if i < len(embeddings) {
				raw, _ := json.Marshal(embeddings[i])
				row.Embedding = datatypes.JSON(raw)
			}
			chunkRows = append(chunkRows, row)
		}
	}

	var imageRows []*types.ImageAsset
	if res.ExtractionKind == "image" {
		img := &types.ImageAsset{
			ID: uuid.New(), DocumentID: doc.ID, UserID: userID, SpaceID: spaceID,
			StorageKey: storageKey, ThumbnailPath: storageKey, Caption: res.ImageCaption, CaptionSource: res.CaptionSource,
			OCRText: res.ImageOCRText, NativeWidth: res.NativeWidth, NativeHeight: res.NativeHeight,
		}
		if len(res.ImageTags) > 0 {
			tagsJSON, _ := json.Marshal(res.ImageTags)
			img.Tags = datatypes.JSON(tagsJSON)
		}
		if ing.embedder != nil && res.ImageCaption != "" {
			var vecs [][]float32
			embedErr := httpx.WithBackoff(ctx, ing.cfg.RetryAttempts, ing.cfg.RetryBaseDelay, ing.cfg.RetryMaxDelay, func(ctx context.Context) error {
				var e error
				vecs, e = ing.embedder.EmbedText(ctx, []string{res.ImageCaption})
				return e
			})
			if embedErr == nil && len(vecs) > 0 {
				raw, _ := json.Marshal(vecs[0])
				img.Embedding = datatypes.JSON(raw)
			}
		}
		imageRows = append(imageRows, img)
	}

	// Step 4: MetaStore transaction.
	_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "indexing", "")
	err = ing.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ing.chunks.Create(ctx, tx, chunkRows); err != nil {
			return fmt.Errorf("create chunks: %w", err)
		}
		if len(imageRows) > 0 {
			if _, err := ing.images.Create(ctx, tx, imageRows); err != nil {
				return fmt.Errorf("create images: %w", err)
			}
		}
		if ing.searchCfg.PersistEmbeddingsInMeta {
			for _, row := range chunkRows {
				if len(row.Embedding) == 0 {
					continue
				}
				var vec []float32
				if err := json.Unmarshal(row.Embedding, &vec); err == nil {
					_ = ing.chunks.SetEmbeddingVec(ctx, tx, row.ID, vec)
				}
			}
		}
		doc.Metadata = datatypes.JSON(metaJSON)
		doc.Warning = res.Warning
		doc.Status = "ready"
		return tx.Model(&types.Document{}).Where("id = ?", doc.ID).Updates(map[string]any{
			"status": "ready", "metadata": datatypes.JSON(metaJSON), "warning": res.Warning,
		}).Error
	})
	if err != nil {
		_ = ing.documents.UpdateStatus(ctx, nil, doc.ID, "failed", "metastore transaction failed")
		ing.emit(userID, spaceID, "ingest.failed", doc.ID, map[string]any{"step": "metastore", "error": err.Error()})
		return nil, err
	}

	// Step 5: best-effort SearchIndex dual-write, retried with bounded
	// exponential backoff (spec.md §4.H). The external backend has no
	// per-chunk upsert in this module's SearchIndex contract, only a bulk
	// Reindex; for the "metastore" backend this is a no-op since Postgres
	// reads the rows just written directly.
	if err := httpx.WithBackoff(ctx, ing.cfg.RetryAttempts, ing.cfg.RetryBaseDelay, ing.cfg.RetryMaxDelay, func(ctx context.Context) error {
		return ing.index.Reindex(ctx, userID, spaceID)
	}); err != nil {
		ing.log.Warn("search index dual-write failed, search will lag until the next reindex", "error", err, "document", doc.ID)
	}

	// Step 6: cache bump.
	uidStr, sidStr := userID.String(), spaceID.String()
	_ = ing.cache.Bump(ctx, cache.KindSearch, uidStr, sidStr)
	if len(imageRows) > 0 {
		_ = ing.cache.Bump(ctx, cache.KindImageSearch, uidStr, sidStr)
	}

	// Step 7: Activity.
	ing.emit(userID, spaceID, "ingest.indexed", doc.ID, map[string]any{"chunks": len(chunkRows), "images": len(imageRows)})

	return doc, nil
}

// Delete removes a Document and its derived Chunks/ImageAssets from
// MetaStore, then best-effort rebuilds the SearchIndex for the tenant.
func (ing *Ingestor) Delete(ctx context.Context, userID, spaceID, documentID uuid.UUID) error {
	doc, err := ing.documents.GetByIDForTenant(ctx, nil, documentID, userID, spaceID)
	if err != nil {
		return apperr.NotFound("document not found")
	}
	err = ing.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ing.chunks.FullDeleteByDocumentID(ctx, tx, doc.ID); err != nil {
			return err
		}
		if err := ing.images.FullDeleteByDocumentID(ctx, tx, doc.ID); err != nil {
			return err
		}
		return ing.documents.FullDeleteByID(ctx, tx, doc.ID)
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := ing.index.Reindex(ctx, userID, spaceID); err != nil {
		ing.log.Warn("search index rebuild after delete failed", "error", err)
	}
	uidStr, sidStr := userID.String(), spaceID.String()
	_ = ing.cache.Bump(ctx, cache.KindSearch, uidStr, sidStr)
	_ = ing.cache.Bump(ctx, cache.KindImageSearch, uidStr, sidStr)
	ing.emit(userID, spaceID, "ingest.deleted", doc.ID, nil)
	return nil
}

// Reindex is the admin-triggered rebuild (spec.md §6 POST /admin/reindex).
func (ing *Ingestor) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error {
	if err := ing.index.Reindex(ctx, userID, spaceID); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	uidStr, sidStr := userID.String(), spaceID.String()
	_ = ing.cache.Bump(ctx, cache.KindSearch, uidStr, sidStr)
	_ = ing.cache.Bump(ctx, cache.KindImageSearch, uidStr, sidStr)
	return nil
}

func (ing *Ingestor) emit(userID, spaceID uuid.UUID, kind string, subjectID uuid.UUID, detail map[string]any) {
	if ing.bus != nil {
		_ = ing.bus.Publish(context.Background(), redis.ActivityEvent{
			UserID: userID.String(), SpaceID: spaceID.String(), Kind: kind, SubjectID: subjectID.String(), Detail: detail,
		})
	}
	if ing.activities == nil {
		return
	}
	var detailJSON datatypes.JSON
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			detailJSON = datatypes.JSON(raw)
		}
	}
	if _, err := ing.activities.Create(context.Background(), nil, &types.Activity{
		UserID: userID, SpaceID: spaceID, Kind: kind, SubjectID: subjectID, Detail: detailJSON,
	}); err != nil {
		ing.log.Warn("activity persist failed", "error", err, "kind", kind)
	}
}

func sourceTypeFor(mimeType, name string) string {
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case mimeType == "text/html":
		return "html"
	case mimeType == "application/json":
		return "json"
	default:
		return "txt"
	}
}
