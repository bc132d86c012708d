package deepresearch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/websearch"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/retriever"
	"github.com/yungbote/ragcore/internal/searchindex"
	"github.com/yungbote/ragcore/internal/types"
)

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*types.ResearchSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*types.ResearchSession{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) (*types.ResearchSession, error) {
	s.ID = uuid.New()
	f.sessions[s.ID] = s
	return s, nil
}
func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ResearchSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}
func (f *fakeSessionRepo) Update(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) error {
	f.sessions[s.ID] = s
	return nil
}

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
	generateOut string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.generateOut, nil
}
func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, nil
}
func (f *fakeGenerator) Stream(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	return f.generateOut, nil
}

type fakeWebSearch struct {
	hits      []websearch.Hit
	searchErr error
	searched  int
	fetched   []string
}

func (f *fakeWebSearch) Search(ctx context.Context, query string, limit int) ([]websearch.Hit, error) {
	f.searched++
	return f.hits, f.searchErr
}
func (f *fakeWebSearch) FetchURL(ctx context.Context, u string) (websearch.Hit, error) {
	f.fetched = append(f.fetched, u)
	return websearch.Hit{Title: "fetched", URL: u, Snippet: "fetched body"}, nil
}

type fakeCacher struct{}

func (fakeCacher) Get(ctx context.Context, key string, dest any) bool { return false }
func (fakeCacher) Set(ctx context.Context, key string, val any, ttl time.Duration) {}
func (fakeCacher) Bump(ctx context.Context, kind cache.Kind, userID, spaceID string) error {
	return nil
}
func (fakeCacher) Revision(ctx context.Context, kind cache.Kind, userID, spaceID string) (int64, error) {
	return 0, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func newTestRetriever(t *testing.T, hits []searchindex.ChunkHit) *retriever.Retriever {
	return retriever.New(&fakeIndex{hits: hits}, nil, fakeCacher{}, config.SearchConfig{}, config.CacheConfig{}, testLogger(t))
}

func defaultResearchConfig() config.ResearchConfig {
	return config.ResearchConfig{
		WallClockBudget:      120 * time.Second,
		ConfidenceBaseline:   0.3,
		FollowupRelevanceMin: 0.1,
		LocalTopK:            15,
		WebTopK:              8,
		RetryLoops:           1,
		MissingConceptLoops:  0,
		MissingConceptTopK:   6,
	}
}

func TestStart_CreatesSessionInPlanState(t *testing.T) {
	sessions := newFakeSessionRepo()
	a := New(sessions, newTestRetriever(t, nil), nil, nil, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "what is the weather?")
	require.NoError(t, err)
	assert.Equal(t, StatePlan, s.State)
	assert.Equal(t, "what is the weather?", s.Question)
}

func TestAsk_LocalOnlyQuestionDoesNotTriggerWebSearch(t *testing.T) {
	sessions := newFakeSessionRepo()
	hits := []searchindex.ChunkHit{
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context one", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context two", Score: 0.85},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context three", Score: 0.8},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context four", Score: 0.75},
	}
	retr := newTestRetriever(t, hits)
	gen := &fakeGenerator{generateOut: "a grounded answer"}
	web := &fakeWebSearch{}
	a := New(sessions, retr, gen, web, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "a well covered local question", false, nil)
	require.NoError(t, err)
	assert.False(t, result.UsedWeb)
	assert.Equal(t, 0, web.searched, "a well-covered local question should not escalate to web search")
}

func TestAsk_ForceWebAlwaysSearches(t *testing.T) {
	sessions := newFakeSessionRepo()
	retr := newTestRetriever(t, nil)
	gen := &fakeGenerator{generateOut: "answer"}
	web := &fakeWebSearch{hits: []websearch.Hit{{Title: "result", URL: "https://example.com", Snippet: "snippet"}}}
	a := New(sessions, retr, gen, web, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "force the web", true, nil)
	require.NoError(t, err)
	assert.True(t, result.UsedWeb)
	assert.GreaterOrEqual(t, web.searched, 1)
}

func TestAsk_ExplicitURLsAreFetchedAndCountAsWebUsage(t *testing.T) {
	sessions := newFakeSessionRepo()
	hits := []searchindex.ChunkHit{
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "a", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "b", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "c", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "d", Score: 0.9},
	}
	retr := newTestRetriever(t, hits)
	gen := &fakeGenerator{generateOut: "answer"}
	web := &fakeWebSearch{}
	a := New(sessions, retr, gen, web, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "question", false, []string{"https://example.com/page"})
	require.NoError(t, err)
	assert.True(t, result.UsedWeb)
	require.Len(t, web.fetched, 1)
	assert.Equal(t, "https://example.com/page", web.fetched[0])
}

func TestAsk_UnknownSessionReturnsNotFound(t *testing.T) {
	sessions := newFakeSessionRepo()
	a := New(sessions, newTestRetriever(t, nil), nil, nil, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	_, err := a.Ask(context.Background(), uuid.New(), "question", false, nil)
	assert.Error(t, err)
}

func TestAsk_BlankMessageFallsBackToOpeningQuestion(t *testing.T) {
	sessions := newFakeSessionRepo()
	a := New(sessions, newTestRetriever(t, nil), &fakeGenerator{generateOut: "answer"}, &fakeWebSearch{}, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "the opening question")
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), s.ID, "   ", false, nil)
	require.NoError(t, err)

	var history []types.ResearchMessage
	require.NoError(t, json.Unmarshal(sessions.sessions[s.ID].Messages, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "the opening question", history[0].Text)
}

func TestAsk_AppendsUserAndAssistantMessagesToHistory(t *testing.T) {
	sessions := newFakeSessionRepo()
	a := New(sessions, newTestRetriever(t, nil), &fakeGenerator{generateOut: "the answer"}, &fakeWebSearch{}, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening")
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), s.ID, "turn one", false, nil)
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), s.ID, "turn two", false, nil)
	require.NoError(t, err)

	var history []types.ResearchMessage
	require.NoError(t, json.Unmarshal(sessions.sessions[s.ID].Messages, &history))
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "turn one", history[0].Text)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "turn two", history[2].Text)
}

func TestAppendMessages_BoundsHistoryToMaxResearchMessages(t *testing.T) {
	var prior []types.ResearchMessage
	for i := 0; i < types.MaxResearchMessages; i++ {
		prior = append(prior, types.ResearchMessage{Role: "user", Text: "old"})
	}
	priorJSON, err := json.Marshal(prior)
	require.NoError(t, err)

	out := appendMessages(priorJSON, "new question", "new answer", nil, 0.5, 10, false, nil)
	assert.Len(t, out, types.MaxResearchMessages)
	assert.Equal(t, "new answer", out[len(out)-1].Text)
}

func TestBestSemanticQuality_UsesHighestNormalizedScore(t *testing.T) {
	hits := []retriever.Hit{{Score: 0.2}, {Score: 0.75}, {Score: 0.4}}
	assert.InDelta(t, 0.75, bestSemanticQuality(hits), 1e-9)
}

func TestBestSemanticQuality_EmptyHitsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, bestSemanticQuality(nil))
}

func TestShouldConsiderWeb_NoLocalHitsAlwaysConsidersWeb(t *testing.T) {
	assert.True(t, shouldConsiderWeb(nil, 0.55))
}

func TestShouldConsiderWeb_StrongLocalCoverageSkipsWeb(t *testing.T) {
	var hits []retriever.Hit
	for i := 0; i < 8; i++ {
		hits = append(hits, retriever.Hit{DocumentID: uuid.New(), Score: 0.95})
	}
	assert.False(t, shouldConsiderWeb(hits, 0.55))
}

func TestComputeConfidence_WebUsageIncreasesConfidence(t *testing.T) {
	hits := []retriever.Hit{{DocumentID: uuid.New()}}
	withoutWeb := computeConfidence(hits, false, 0.3)
	withWeb := computeConfidence(hits, true, 0.3)
	assert.Greater(t, withWeb, withoutWeb)
}

func TestComputeConfidence_NeverBelowBaseline(t *testing.T) {
	assert.Equal(t, 0.9, computeConfidence(nil, false, 0.9))
}

func TestExtractSubqueries_ShortQuestionIsSingleSubquery(t *testing.T) {
	assert.Equal(t, []string{"short question"}, extractSubqueries("short question"))
}

func TestExtractSubqueries_SplitsLongCompoundQuestion(t *testing.T) {
	q := "What is the capital of France, and what is the capital of Germany, and what is the capital of Italy, and what is the capital of Spain"
	out := extractSubqueries(q)
	assert.Greater(t, len(out), 1)
	assert.LessOrEqual(t, len(out), 4)
}

func TestFilterFollowups_DropsDuplicatesAndOffTopic(t *testing.T) {
	candidates := []string{"What is the capital of France?", "what is the capital of france?", "Completely unrelated trivia question?"}
	out := filterFollowups(candidates, "Tell me about France's capital", 0.2)
	require.Len(t, out, 1)
	assert.Equal(t, "What is the capital of France?", out[0])
}

func TestIsLocalWeak_FewHitsOrLowDiversityIsWeak(t *testing.T) {
	assert.True(t, isLocalWeak(nil, 4, 2))
	sameDoc := uuid.New()
	hits := []retriever.Hit{{DocumentID: sameDoc}, {DocumentID: sameDoc}, {DocumentID: sameDoc}, {DocumentID: sameDoc}}
	assert.True(t, isLocalWeak(hits, 4, 2), "single-document coverage should still count as weak")
}

func TestBuildReferences_TagsLocalWebAndURLSources(t *testing.T) {
	hits := []retriever.Hit{
		{DocumentID: uuid.New(), ChunkID: uuid.New(), Text: "local context"},
	}
	webHits := []websearch.Hit{
		{Title: "fetched page", URL: "https://example.com/page", Snippet: "explicit url body"},
		{Title: "search result", URL: "https://example.com/result", Snippet: "organic web body"},
	}

	refs := buildReferences(hits, webHits, 1)

	require.Len(t, refs, 3)
	assert.Equal(t, "local", refs[0].Source)
	assert.Equal(t, "url", refs[1].Source)
	assert.Equal(t, "https://example.com/page", refs[1].URL)
	assert.Equal(t, "web", refs[2].Source)
	assert.Equal(t, "https://example.com/result", refs[2].URL)
}

func TestBuildReferences_NoURLCountTagsAllWebHitsAsWeb(t *testing.T) {
	webHits := []websearch.Hit{{Title: "result", URL: "https://example.com", Snippet: "snippet"}}
	refs := buildReferences(nil, webHits, 0)
	require.Len(t, refs, 1)
	assert.Equal(t, "web", refs[0].Source)
}

func TestAsk_ReturnsElapsedSecondsAndReferences(t *testing.T) {
	sessions := newFakeSessionRepo()
	hits := []searchindex.ChunkHit{
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "context one", Score: 0.9},
	}
	retr := newTestRetriever(t, hits)
	gen := &fakeGenerator{generateOut: "an answer"}
	a := New(sessions, retr, gen, &fakeWebSearch{}, fakeCacher{}, nil, nil, defaultResearchConfig(), testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "a question", false, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.ElapsedSeconds, 0.0)
	require.NotEmpty(t, result.References)
	assert.Equal(t, "local", result.References[0].Source)
}

func TestAsk_FollowupsSuppressedWhenConfidenceMeetsThreshold(t *testing.T) {
	sessions := newFakeSessionRepo()
	hits := []searchindex.ChunkHit{
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "a", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "b", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "c", Score: 0.9},
		{ChunkID: uuid.New(), DocumentID: uuid.New(), Text: "d", Score: 0.9},
	}
	retr := newTestRetriever(t, hits)
	gen := &fakeGenerator{generateOut: "a confident answer"}
	cfg := defaultResearchConfig()
	cfg.ConfidenceBaseline = 0.95
	cfg.ConfidenceThreshold = 0.01
	a := New(sessions, retr, gen, &fakeWebSearch{}, fakeCacher{}, nil, nil, cfg, testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "a well covered question", false, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Confidence, cfg.ConfidenceThreshold)
	assert.Empty(t, result.FollowupQuestions, "confidence above threshold should not trigger follow-up generation")
}

func TestAsk_FollowupsGeneratedWhenConfidenceBelowThreshold(t *testing.T) {
	sessions := newFakeSessionRepo()
	retr := newTestRetriever(t, nil)
	gen := &fakeGenerator{generateOut: "What does a sparsely covered question mean?"}
	cfg := defaultResearchConfig()
	cfg.ConfidenceBaseline = 0.1
	cfg.ConfidenceThreshold = 0.99
	cfg.RetryLoops = 0
	a := New(sessions, retr, gen, &fakeWebSearch{}, fakeCacher{}, nil, nil, cfg, testLogger(t))

	s, err := a.Start(context.Background(), uuid.New(), uuid.New(), "opening question")
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), s.ID, "a sparsely covered question", false, nil)
	require.NoError(t, err)
	assert.Less(t, result.Confidence, cfg.ConfidenceThreshold)
	assert.NotEmpty(t, result.FollowupQuestions, "confidence below threshold should trigger follow-up generation")
}
