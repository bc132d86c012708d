package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/searchindex"
)

type fakeIndex struct {
	lexical             []searchindex.ChunkHit
	semantic            []searchindex.ChunkHit
	lexicalErr, knnErr  error
}

func (f *fakeIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]searchindex.ChunkHit, error) {
	return f.lexical, f.lexicalErr
}
func (f *fakeIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]searchindex.ChunkHit, error) {
	return f.semantic, f.knnErr
}
func (f *fakeIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]searchindex.ImageHit, error) {
	return nil, nil
}
func (f *fakeIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error { return nil }

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) EmbedText(ctx context.Context, inputs []string) ([][]float32, error) {
	return [][]float32{f.vec}, nil
}
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type fakeCacher struct {
	store map[string]any
	rev   map[string]int64
}

func newFakeCacher() *fakeCacher {
	return &fakeCacher{store: map[string]any{}, rev: map[string]int64{}}
}

func (f *fakeCacher) Get(ctx context.Context, key string, dest any) bool {
	v, ok := f.store[key]
	if !ok {
		return false
	}
	switch d := dest.(type) {
	case *[]Hit:
		*d = v.([]Hit)
	default:
		return false
	}
	return true
}
func (f *fakeCacher) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	f.store[key] = val
}
func (f *fakeCacher) Bump(ctx context.Context, kind cache.Kind, userID, spaceID string) error {
	f.rev[string(kind)+userID+spaceID]++
	return nil
}
func (f *fakeCacher) Revision(ctx context.Context, kind cache.Kind, userID, spaceID string) (int64, error) {
	return f.rev[string(kind)+userID+spaceID], nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func TestSearch_FusesLexicalAndSemanticWithRRF(t *testing.T) {
	chunkA, chunkB := uuid.New(), uuid.New()
	idx := &fakeIndex{
		semantic: []searchindex.ChunkHit{{ChunkID: chunkA, Text: "a", Score: 0.9}},
		lexical:  []searchindex.ChunkHit{{ChunkID: chunkB, Text: "b", Score: 0.4}, {ChunkID: chunkA, Text: "a", Score: 0.7}},
	}
	r := New(idx, &fakeEmbedder{vec: []float32{0.1}}, newFakeCacher(), config.SearchConfig{}, config.CacheConfig{}, testLogger(t))

	hits, err := r.Search(context.Background(), uuid.New(), uuid.New(), "query", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, chunkA, hits[0].ChunkID, "chunk appearing in both lists should rank first")
}

func TestSearch_CacheHitSkipsBackendCalls(t *testing.T) {
	idx := &fakeIndex{lexical: []searchindex.ChunkHit{{ChunkID: uuid.New(), Text: "should not be seen"}}}
	c := newFakeCacher()
	r := New(idx, nil, c, config.SearchConfig{}, config.CacheConfig{}, testLogger(t))
	userID, spaceID := uuid.New(), uuid.New()

	cached := []Hit{{ChunkID: uuid.New(), Text: "cached hit", RRFScore: 1}}
	rev, _ := c.Revision(context.Background(), cache.KindSearch, userID.String(), spaceID.String())
	key := cache.HybridSearchKey(rev, userID.String(), spaceID.String(), 5, "query")
	c.store[key] = cached

	hits, err := r.Search(context.Background(), userID, spaceID, "query", 5)
	require.NoError(t, err)
	assert.Equal(t, cached, hits)
}

func TestSearch_NilEmbedderSkipsSemanticLeg(t *testing.T) {
	idx := &fakeIndex{lexical: []searchindex.ChunkHit{{ChunkID: uuid.New(), Text: "lexical only"}}}
	r := New(idx, nil, newFakeCacher(), config.SearchConfig{}, config.CacheConfig{}, testLogger(t))

	hits, err := r.Search(context.Background(), uuid.New(), uuid.New(), "query", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "lexical only", hits[0].Text)
}

func TestApplyRecencyDecay_OlderHitsScoreLower(t *testing.T) {
	now := time.Now()
	hits := []Hit{
		{ChunkID: uuid.New(), RRFScore: 1.0, CreatedAt: now},
		{ChunkID: uuid.New(), RRFScore: 1.0, CreatedAt: now.Add(-60 * 24 * time.Hour)},
	}
	applyRecencyDecay(hits, 30, now)
	assert.InDelta(t, 1.0, hits[0].RRFScore, 1e-9)
	assert.Less(t, hits[1].RRFScore, hits[0].RRFScore)
}

func TestApplyRecencyDecay_ZeroCreatedAtIsUnaffected(t *testing.T) {
	now := time.Now()
	hits := []Hit{{ChunkID: uuid.New(), RRFScore: 0.5}}
	applyRecencyDecay(hits, 30, now)
	assert.Equal(t, 0.5, hits[0].RRFScore)
}

func TestSearch_RecencyBoostReordersByAge(t *testing.T) {
	chunkOld, chunkNew := uuid.New(), uuid.New()
	now := time.Now()
	idx := &fakeIndex{
		lexical: []searchindex.ChunkHit{
			{ChunkID: chunkOld, Text: "old", Score: 0.5, CreatedAt: now.Add(-365 * 24 * time.Hour)},
			{ChunkID: chunkNew, Text: "new", Score: 0.5, CreatedAt: now},
		},
	}
	cfg := config.SearchConfig{RecencyBoostEnable: true, RecencyScaleDays: 10}
	r := New(idx, nil, newFakeCacher(), cfg, config.CacheConfig{}, testLogger(t))

	hits, err := r.Search(context.Background(), uuid.New(), uuid.New(), "q", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, chunkNew, hits[0].ChunkID, "recency decay should promote the fresher hit")
}

func TestMMR_DiversifiesAwayFromNearDuplicateText(t *testing.T) {
	hits := []Hit{
		{ChunkID: uuid.New(), Text: "the quick brown fox", RRFScore: 1.0},
		{ChunkID: uuid.New(), Text: "the quick brown fox jumps", RRFScore: 0.95},
		{ChunkID: uuid.New(), Text: "completely unrelated content here", RRFScore: 0.5},
	}
	out := mmr(hits, 0.5, 2)
	require.Len(t, out, 2)
	assert.Equal(t, hits[0].ChunkID, out[0].ChunkID)
	assert.Equal(t, hits[2].ChunkID, out[1].ChunkID, "second pick should favor the novel hit over the near-duplicate")
}

func TestMMR_PassthroughWhenLambdaOutOfRange(t *testing.T) {
	hits := []Hit{{ChunkID: uuid.New(), Text: "a"}, {ChunkID: uuid.New(), Text: "b"}}
	assert.Equal(t, hits, mmr(hits, 0, 2))
	assert.Equal(t, hits, mmr(hits, 1, 2))
}
