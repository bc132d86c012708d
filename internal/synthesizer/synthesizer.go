// Package synthesizer implements spec.md §4.J's single-shot RAG answer: a
// direct question against the tenant's retrieved chunks, no agentic
// iteration. Grounded on original_source/search.py's rag(): context
// assembly by newline-joining chunk text, a cache key over
// query+chunk-fingerprint+context, and falling back to the bare context
// when the Generator call fails rather than erroring the request.
package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/retriever"
)

const systemPrompt = `You are a careful research assistant. Answer the user's question using only
the provided context. If the context does not contain enough information to
answer confidently, say so explicitly rather than guessing.`

// Reference is the citation shape returned alongside an Answer: one entry
// per distinct chunk the generator was given, so a client can render
// "sourced from" links without re-querying the retriever.
type Reference struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	Text       string    `json:"text"`
}

type Answer struct {
	Text       string          `json:"answer"`
	Hits       []retriever.Hit `json:"hits"`
	UsedModel  bool            `json:"used_llm"`
	References []Reference     `json:"references"`
}

type Synthesizer struct {
	retriever *retriever.Retriever
	gen       generator.Generator
	cache     cache.Cacher
	cacheCfg  config.CacheConfig
	log       *logger.Logger
	provider  string
}

func New(r *retriever.Retriever, gen generator.Generator, c cache.Cacher, cacheCfg config.CacheConfig, provider string, log *logger.Logger) *Synthesizer {
	return &Synthesizer{retriever: r, gen: gen, cache: c, cacheCfg: cacheCfg, provider: provider, log: log.With("component", "Synthesizer")}
}

func (s *Synthesizer) Answer(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) (*Answer, error) {
	hits, err := s.retriever.Search(ctx, userID, spaceID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	texts := make([]string, 0, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
		ids = append(ids, fmt.Sprintf("%s-%s", h.DocumentID, h.ChunkID))
	}
	context := strings.Join(texts, "\n\n")

	uidStr, sidStr := userID.String(), spaceID.String()
	rev, _ := s.cache.Revision(ctx, cache.KindRAG, uidStr, sidStr)
	ck := cache.RAGKey(rev, s.provider, "hybrid", uidStr, sidStr, topK, query, cache.ChunkFingerprint(ids), context)

	refs := make([]Reference, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, Reference{DocumentID: h.DocumentID, ChunkID: h.ChunkID, Text: h.Text})
	}

	var cached Answer
	if ok := s.cache.Get(ctx, ck, &cached); ok {
		cached.Hits = hits
		cached.References = refs
		return &cached, nil
	}

	answer := context
	usedModel := false
	if s.gen != nil {
		userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, query)
		out, err := s.gen.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			s.log.Warn("generator call failed, returning raw context", "error", err)
		} else if strings.TrimSpace(out) != "" {
			answer = out
			usedModel = true
		}
	}

	result := Answer{Text: answer, Hits: hits, UsedModel: usedModel, References: refs}
	ttl := s.cacheCfg.LLMTTL
	if ttl <= 0 {
		ttl = 900 * time.Second
	}
	s.cache.Set(ctx, ck, result, ttl)
	return &result, nil
}
