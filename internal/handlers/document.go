// Package handlers implements the HTTP surface of spec.md §6, grounded on
// the teacher's internal/handlers/material.go (struct-holds-service,
// RespondOK/RespondError envelope, gin.Context per route) generalized from
// material-set CRUD to document upload/admin.
package handlers

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/clients/blobstore"
	"github.com/yungbote/ragcore/internal/ingestor"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/tenant"
)

type DocumentHandler struct {
	log       *logger.Logger
	ingestor  *ingestor.Ingestor
	documents repos.DocumentRepo
	chunks    repos.ChunkRepo
	blobs     blobstore.BlobStore
}

func NewDocumentHandler(log *logger.Logger, ing *ingestor.Ingestor, documents repos.DocumentRepo, chunks repos.ChunkRepo, blobs blobstore.BlobStore) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "DocumentHandler"), ingestor: ing, documents: documents, chunks: chunks, blobs: blobs}
}

// uploadResult is one entry of the /upload response array, per spec.md §6:
// "[{document_id, num_chunks, file_name, blob_url}]".
type uploadResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	NumChunks  int64     `json:"num_chunks"`
	FileName   string    `json:"file_name"`
	BlobURL    string    `json:"blob_url"`
	Warning    string    `json:"warning,omitempty"`
}

// POST /upload — accepts one or more files under the "file" multipart field
// (spec.md §6 documents a batch response shape, so a single-file upload is
// handled the same way as a batch of one).
func (h *DocumentHandler) Upload(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	if t.SpaceID == uuid.Nil {
		RespondError(c, apperr.Validation("X-Space-Id header is required to upload a document"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, apperr.Validation("missing multipart form: %v", err))
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		RespondError(c, apperr.Validation("missing multipart field \"file\""))
		return
	}

	results := make([]uploadResult, 0, len(files))
	for _, fileHeader := range files {
		f, err := fileHeader.Open()
		if err != nil {
			RespondError(c, apperr.Internal("open upload %q: %v", fileHeader.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			RespondError(c, apperr.Internal("read upload %q: %v", fileHeader.Filename, err))
			return
		}
		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		doc, err := h.ingestor.Ingest(c.Request.Context(), t.UserID, t.SpaceID, fileHeader.Filename, mimeType, data)
		if err != nil && doc == nil {
			RespondError(c, err)
			return
		}
		numChunks, _ := h.chunks.CountByDocumentID(c.Request.Context(), nil, doc.ID)
		results = append(results, uploadResult{
			DocumentID: doc.ID,
			NumChunks:  numChunks,
			FileName:   doc.OriginalName,
			BlobURL:    h.blobs.PublicURL(doc.StorageKey),
			Warning:    doc.Warning,
		})
	}
	RespondOK(c, results)
}

// GET /admin/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	spaceID := t.SpaceID
	if v := c.Query("space_id"); v != "" {
		if parsed, err := uuid.Parse(v); err == nil {
			spaceID = parsed
		}
	}
	docs, err := h.documents.ListByTenant(c.Request.Context(), nil, t.UserID, spaceID, limit, offset)
	if err != nil {
		RespondError(c, apperr.Internal("list documents: %v", err))
		return
	}
	total, err := h.documents.CountByTenant(c.Request.Context(), nil, t.UserID, spaceID)
	if err != nil {
		RespondError(c, apperr.Internal("count documents: %v", err))
		return
	}
	RespondOK(c, gin.H{"total": total, "documents": docs})
}

// DELETE /admin/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid document id"))
		return
	}
	if err := h.ingestor.Delete(c.Request.Context(), t.UserID, t.SpaceID, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"ok": true, "deleted_id": id})
}

type reindexRequest struct {
	DocID   string `json:"doc_id"`
	SpaceID string `json:"space_id"`
	All     bool   `json:"all"`
}

// POST /admin/reindex — scoped by the documented `{doc_id|space_id|all}`
// body. `doc_id` and `space_id` resolve to a single space to rebuild (a
// document's own chunks are always rebuilt as part of rebuilding its
// owning space's SearchIndex, since Reindex is a bulk per-space rebuild,
// not an incremental per-document one — see DESIGN.md's Open Question
// decision on reindex granularity). `all` rebuilds every space the caller's
// tenant owns.
func (h *DocumentHandler) Reindex(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	var req reindexRequest
	_ = c.ShouldBindJSON(&req)

	spaceIDs := []uuid.UUID{}
	switch {
	case req.DocID != "":
		docID, err := uuid.Parse(req.DocID)
		if err != nil {
			RespondError(c, apperr.Validation("invalid doc_id"))
			return
		}
		doc, err := h.documents.GetByIDForTenant(c.Request.Context(), nil, docID, t.UserID, uuid.Nil)
		if err != nil {
			RespondError(c, apperr.NotFound("document not found"))
			return
		}
		spaceIDs = append(spaceIDs, doc.SpaceID)
	case req.SpaceID != "":
		spaceID, err := uuid.Parse(req.SpaceID)
		if err != nil {
			RespondError(c, apperr.Validation("invalid space_id"))
			return
		}
		spaceIDs = append(spaceIDs, spaceID)
	case req.All:
		spaces, err := h.ingestor.SpacesForUser(c.Request.Context(), t.UserID)
		if err != nil {
			RespondError(c, apperr.Internal("list spaces: %v", err))
			return
		}
		spaceIDs = spaces
	default:
		spaceIDs = append(spaceIDs, t.SpaceID)
	}

	reindexed := make([]uuid.UUID, 0, len(spaceIDs))
	for _, spaceID := range spaceIDs {
		if err := h.ingestor.Reindex(c.Request.Context(), t.UserID, spaceID); err != nil {
			RespondError(c, err)
			return
		}
		reindexed = append(reindexed, spaceID)
	}
	RespondOK(c, gin.H{"ok": true, "reindexed": reindexed})
}
