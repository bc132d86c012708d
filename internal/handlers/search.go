package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/normalization"
	"github.com/yungbote/ragcore/internal/retriever"
	"github.com/yungbote/ragcore/internal/searchindex"
	"github.com/yungbote/ragcore/internal/synthesizer"
	"github.com/yungbote/ragcore/internal/tenant"
)

type SearchHandler struct {
	log         *logger.Logger
	retriever   *retriever.Retriever
	synthesizer *synthesizer.Synthesizer
	index       searchindex.SearchIndex
	embedder    generator.Embedder
	cfg         config.SearchConfig
}

func NewSearchHandler(log *logger.Logger, retr *retriever.Retriever, syn *synthesizer.Synthesizer, index searchindex.SearchIndex, embedder generator.Embedder, cfg config.SearchConfig) *SearchHandler {
	return &SearchHandler{log: log.With("handler", "SearchHandler"), retriever: retr, synthesizer: syn, index: index, embedder: embedder, cfg: cfg}
}

// searchModes are the four dispatch modes of POST /search, mirroring
// original_source/search-app/app/search.py's rag() branch on mode: semantic
// and fulltext each run one sub-query directly against the index, hybrid
// fuses both through the Retriever without invoking the generator, and only
// rag additionally calls the Synthesizer (and therefore the LLM).
const (
	modeSemantic = "semantic"
	modeFulltext = "fulltext"
	modeHybrid   = "hybrid"
	modeRAG      = "rag"
)

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
	Mode  string `json:"mode"` // semantic|fulltext|hybrid|rag, default rag
}

// POST /search
func (h *SearchHandler) Search(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = h.cfg.DefaultTopK
	}
	query := normalization.ParseInputString(req.Query)
	mode := req.Mode
	if mode == "" {
		mode = modeRAG
	}

	ctx := c.Request.Context()
	switch mode {
	case modeHybrid:
		hits, err := h.retriever.Search(ctx, t.UserID, t.SpaceID, query, topK)
		if err != nil {
			RespondError(c, apperr.Internal("hybrid search: %v", err))
			return
		}
		RespondOK(c, gin.H{"hits": hits})
	case modeSemantic:
		if h.cfg.Backend == "metastore" && !h.cfg.PersistEmbeddingsInMeta {
			RespondError(c, apperr.Validation("semantic mode needs persisted embeddings when backend=metastore"))
			return
		}
		var queryVec []float32
		if h.embedder != nil {
			vecs, err := h.embedder.EmbedText(ctx, []string{query})
			if err != nil {
				RespondError(c, apperr.Internal("embed query: %v", err))
				return
			}
			if len(vecs) > 0 {
				queryVec = vecs[0]
			}
		}
		hits, err := h.index.KNNSearch(ctx, t.UserID, t.SpaceID, queryVec, topK)
		if err != nil {
			RespondError(c, apperr.Internal("semantic search: %v", err))
			return
		}
		RespondOK(c, gin.H{"hits": hits})
	case modeFulltext:
		hits, err := h.index.LexicalSearch(ctx, t.UserID, t.SpaceID, query, topK)
		if err != nil {
			RespondError(c, apperr.Internal("fulltext search: %v", err))
			return
		}
		RespondOK(c, gin.H{"hits": hits})
	case modeRAG:
		answer, err := h.synthesizer.Answer(ctx, t.UserID, t.SpaceID, query, topK)
		if err != nil {
			RespondError(c, apperr.Internal("synthesize answer: %v", err))
			return
		}
		RespondOK(c, answer)
	default:
		RespondError(c, apperr.Validation("unknown mode %q: must be one of semantic, fulltext, hybrid, rag", mode))
	}
}

type imageSearchRequest struct {
	Query string   `json:"query" binding:"required"`
	TopK  int      `json:"top_k"`
	Tags  []string `json:"tags"`
}

// POST /image-search
func (h *SearchHandler) ImageSearch(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	var req imageSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = h.cfg.DefaultTopK
	}
	query := normalization.ParseInputString(req.Query)
	var queryVec []float32
	if h.embedder != nil {
		vecs, err := h.embedder.EmbedText(c.Request.Context(), []string{query})
		if err == nil && len(vecs) > 0 {
			queryVec = vecs[0]
		} else if err != nil {
			h.log.Warn("image search query embedding failed, falling back to caption/ocr text match only", "error", err)
		}
	}
	hits, err := h.index.ImageSearch(c.Request.Context(), t.UserID, t.SpaceID, query, queryVec, req.Tags, topK)
	if err != nil {
		RespondError(c, apperr.Internal("image search: %v", err))
		return
	}
	RespondOK(c, gin.H{"hits": hits})
}
