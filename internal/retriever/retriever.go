// Package retriever implements spec.md §4.I's hybrid retrieval: lexical and
// semantic sub-queries fused with Reciprocal Rank Fusion, optionally
// re-ranked with Maximal Marginal Relevance, cache-first. Grounded on
// original_source/search.py's hybrid_search (same k0=60 constant, same
// cache-key shape) with the two sub-queries run concurrently via
// golang.org/x/sync/errgroup per spec.md §5.
package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/searchindex"
)

type Hit struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Text       string
	RRFScore   float64
	// Score is the backend's own normalized [0,1] relevance signal for this
	// hit's winning sub-query (semantic wins ties, since it's added first in
	// fuseRRF), carried through independently of the fused RRF rank so
	// callers needing a genuine quality proxy (deepresearch's coverage
	// check) don't have to reverse-engineer one out of RRFScore.
	Score      float64
	CreatedAt  time.Time
}

type Retriever struct {
	index    searchindex.SearchIndex
	embedder generator.Embedder
	cache    cache.Cacher
	cfg      config.SearchConfig
	cacheCfg config.CacheConfig
	log      *logger.Logger
}

func New(index searchindex.SearchIndex, embedder generator.Embedder, c cache.Cacher, cfg config.SearchConfig, cacheCfg config.CacheConfig, log *logger.Logger) *Retriever {
	return &Retriever{index: index, embedder: embedder, cache: c, cfg: cfg, cacheCfg: cacheCfg, log: log.With("component", "Retriever")}
}

// Search runs lexical and semantic sub-queries concurrently, fuses them with
// RRF (k0 from config, default 60), applies an exponential recency decay to
// the fused score when enabled, and optionally diversifies the result with
// MMR before the final sort.
func (r *Retriever) Search(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]Hit, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	uidStr, sidStr := userID.String(), spaceID.String()
	rev, _ := r.cache.Revision(ctx, cache.KindSearch, uidStr, sidStr)
	ck := cache.HybridSearchKey(rev, uidStr, sidStr, topK, normalized)
	var cached []Hit
	if ok := r.cache.Get(ctx, ck, &cached); ok {
		return cached, nil
	}

	var lexical, semantic []searchindex.ChunkHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.index.LexicalSearch(gctx, userID, spaceID, query, topK*2)
		if err != nil {
			r.log.Warn("lexical search failed", "error", err)
			return nil
		}
		lexical = hits
		return nil
	})
	g.Go(func() error {
		if r.embedder == nil {
			return nil
		}
		vecs, err := r.embedder.EmbedText(gctx, []string{query})
		if err != nil || len(vecs) == 0 {
			r.log.Warn("query embedding failed", "error", err)
			return nil
		}
		hits, err := r.index.KNNSearch(gctx, userID, spaceID, vecs[0], topK*2)
		if err != nil {
			r.log.Warn("knn search failed", "error", err)
			return nil
		}
		semantic = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(semantic, lexical, r.cfg.HybridRRFK0)
	if r.cfg.RecencyBoostEnable {
		applyRecencyDecay(fused, r.cfg.RecencyScaleDays, time.Now())
		sort.SliceStable(fused, func(i, j int) bool { return fused[i].RRFScore > fused[j].RRFScore })
	}
	if r.cfg.HybridMMREnable {
		fused = mmr(fused, r.cfg.HybridMMRLambda, topK)
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}

	ttl := r.cacheCfg.SemanticTTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	r.cache.Set(ctx, ck, fused, ttl)
	return fused, nil
}

// applyRecencyDecay multiplies each hit's RRFScore in place by
// exp(-age_days/scaleDays), matching spec.md §2 row E's exponential recency
// boost (default scale 30 days). A hit with no CreatedAt (e.g. a backend
// that doesn't carry timestamps) decays as if created now, leaving its score
// unchanged.
func applyRecencyDecay(hits []Hit, scaleDays float64, now time.Time) {
	if scaleDays <= 0 {
		scaleDays = 30
	}
	for i := range hits {
		if hits[i].CreatedAt.IsZero() {
			continue
		}
		ageDays := now.Sub(hits[i].CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		hits[i].RRFScore *= math.Exp(-ageDays / scaleDays)
	}
}

// fuseRRF combines two ranked lists using score = sum(1/(k0+rank)). Ties are
// broken by insertion order with semantic inserted first, matching
// original_source/search.py's dict-merge order (semantic map populated
// before lexical entries are merged in).
func fuseRRF(semantic, lexical []searchindex.ChunkHit, k0 float64) []Hit {
	if k0 <= 0 {
		k0 = 60.0
	}
	scores := make(map[uuid.UUID]float64)
	order := make([]uuid.UUID, 0, len(semantic)+len(lexical))
	payload := make(map[uuid.UUID]searchindex.ChunkHit)

	add := func(hits []searchindex.ChunkHit) {
		for i, h := range hits {
			rank := float64(i + 1)
			if _, seen := scores[h.ChunkID]; !seen {
				order = append(order, h.ChunkID)
				payload[h.ChunkID] = h
			}
			scores[h.ChunkID] += 1.0 / (k0 + rank)
		}
	}
	add(semantic)
	add(lexical)

	out := make([]Hit, 0, len(order))
	for _, id := range order {
		p := payload[id]
		out = append(out, Hit{
			ChunkID:    p.ChunkID,
			DocumentID: p.DocumentID,
			Text:       p.Text,
			RRFScore:   scores[id],
			Score:      p.Score,
			CreatedAt:  p.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RRFScore > out[j].RRFScore })
	return out
}

// mmr greedily re-orders hits to balance relevance (RRFScore) against
// novelty (lexical overlap with already-selected hits), a cheap proxy for
// embedding-space diversity that needs no extra vector comparisons.
func mmr(hits []Hit, lambda float64, topK int) []Hit {
	if lambda <= 0 || lambda >= 1 || len(hits) == 0 {
		return hits
	}
	if topK <= 0 || topK > len(hits) {
		topK = len(hits)
	}
	remaining := append([]Hit(nil), hits...)
	selected := make([]Hit, 0, topK)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			novelty := 1.0
			for _, s := range selected {
				novelty = math.Min(novelty, 1.0-jaccard(cand.Text, s.Text))
			}
			score := lambda*cand.RRFScore + (1-lambda)*novelty
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
