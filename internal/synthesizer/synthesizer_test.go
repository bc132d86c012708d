package synthesizer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/retriever"
	"github.com/yungbote/ragcore/internal/searchindex"
)

type fakeIndex struct{ hits []searchindex.ChunkHit }

func (f *fakeIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]searchindex.ChunkHit, error) {
	return f.hits, nil
}
func (f *fakeIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]searchindex.ChunkHit, error) {
	return nil, nil
}
func (f *fakeIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]searchindex.ImageHit, error) {
	return nil, nil
}
func (f *fakeIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error { return nil }

type fakeGenerator struct {
	out   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.out, f.err
}
func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, nil
}
func (f *fakeGenerator) Stream(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	return f.out, f.err
}

type fakeCacher struct {
	store map[string]any
}

func newFakeCacher() *fakeCacher { return &fakeCacher{store: map[string]any{}} }

func (f *fakeCacher) Get(ctx context.Context, key string, dest any) bool {
	v, ok := f.store[key]
	if !ok {
		return false
	}
	*dest.(*Answer) = v.(Answer)
	return true
}
func (f *fakeCacher) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	f.store[key] = val
}
func (f *fakeCacher) Bump(ctx context.Context, kind cache.Kind, userID, spaceID string) error {
	return nil
}
func (f *fakeCacher) Revision(ctx context.Context, kind cache.Kind, userID, spaceID string) (int64, error) {
	return 0, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func newTestRetriever(t *testing.T, hits []searchindex.ChunkHit) *retriever.Retriever {
	return retriever.New(&fakeIndex{hits: hits}, nil, newFakeCacher(), config.SearchConfig{}, config.CacheConfig{}, testLogger(t))
}

func TestAnswer_UsesGeneratorWhenAvailable(t *testing.T) {
	chunkID, docID := uuid.New(), uuid.New()
	retr := newTestRetriever(t, []searchindex.ChunkHit{{ChunkID: chunkID, DocumentID: docID, Text: "paris is the capital of france"}})
	gen := &fakeGenerator{out: "Paris is the capital of France."}
	s := New(retr, gen, newFakeCacher(), config.CacheConfig{}, "openai", testLogger(t))

	ans, err := s.Answer(context.Background(), uuid.New(), uuid.New(), "what is the capital of france?", 5)
	require.NoError(t, err)
	assert.True(t, ans.UsedModel)
	assert.Equal(t, "Paris is the capital of France.", ans.Text)
	require.Len(t, ans.References, 1)
	assert.Equal(t, chunkID, ans.References[0].ChunkID)
	assert.Equal(t, docID, ans.References[0].DocumentID)
	assert.Equal(t, 1, gen.calls)
}

func TestAnswer_FallsBackToRawContextOnGeneratorError(t *testing.T) {
	retr := newTestRetriever(t, []searchindex.ChunkHit{{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "raw context text"}})
	gen := &fakeGenerator{err: assertErr{}}
	s := New(retr, gen, newFakeCacher(), config.CacheConfig{}, "openai", testLogger(t))

	ans, err := s.Answer(context.Background(), uuid.New(), uuid.New(), "question", 5)
	require.NoError(t, err)
	assert.False(t, ans.UsedModel)
	assert.Equal(t, "raw context text", ans.Text)
}

func TestAnswer_NilGeneratorReturnsContextOnly(t *testing.T) {
	retr := newTestRetriever(t, []searchindex.ChunkHit{{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context only"}})
	s := New(retr, nil, newFakeCacher(), config.CacheConfig{}, "openai", testLogger(t))

	ans, err := s.Answer(context.Background(), uuid.New(), uuid.New(), "question", 5)
	require.NoError(t, err)
	assert.False(t, ans.UsedModel)
	assert.Equal(t, "context only", ans.Text)
}

func TestAnswer_CacheHitReturnsCachedTextButFreshHitsAndReferences(t *testing.T) {
	docID, chunkID := uuid.New(), uuid.New()
	retr := newTestRetriever(t, []searchindex.ChunkHit{{ChunkID: chunkID, DocumentID: docID, Text: "fresh text"}})
	c := newFakeCacher()
	gen := &fakeGenerator{out: "should not be called"}
	s := New(retr, gen, c, config.CacheConfig{}, "openai", testLogger(t))

	userID, spaceID := uuid.New(), uuid.New()
	ids := []string{docID.String() + "-" + chunkID.String()}
	ck := cache.RAGKey(0, "openai", "hybrid", userID.String(), spaceID.String(), 5, "question", cache.ChunkFingerprint(ids), "fresh text")
	c.store[ck] = Answer{Text: "cached answer", UsedModel: true}

	ans, err := s.Answer(context.Background(), userID, spaceID, "question", 5)
	require.NoError(t, err)
	assert.Equal(t, "cached answer", ans.Text)
	assert.Equal(t, 0, gen.calls)
	require.Len(t, ans.References, 1)
	assert.Equal(t, chunkID, ans.References[0].ChunkID)
}

func TestAnswer_MarshalsWithDocumentedFieldNames(t *testing.T) {
	ans := Answer{
		Text:       "an answer",
		UsedModel:  true,
		References: []Reference{{DocumentID: uuid.New(), ChunkID: uuid.New(), Text: "cited text"}},
	}
	raw, err := json.Marshal(ans)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "answer")
	assert.Contains(t, decoded, "used_llm")
	assert.Contains(t, decoded, "hits")
	assert.Contains(t, decoded, "references")
}

type assertErr struct{}

func (assertErr) Error() string { return "generator failed" }
