package ingestor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/searchindex"
	"github.com/yungbote/ragcore/internal/types"
)

// fakeSpaceRepo and fakeIndex/fakeCacher below cover only the surface Reindex
// and SpacesForUser touch. Ingest/Delete are deliberately not exercised here:
// both wrap ing.db.WithContext(ctx).Transaction(...) directly against a real
// *gorm.DB, which this package has no in-memory substitute for.
type fakeSpaceRepo struct {
	bySpace map[uuid.UUID][]*types.Space
}

func (f *fakeSpaceRepo) Create(ctx context.Context, tx *gorm.DB, space *types.Space) (*types.Space, error) {
	return space, nil
}
func (f *fakeSpaceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Space, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeSpaceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Space, error) {
	return f.bySpace[userID], nil
}
func (f *fakeSpaceRepo) BelongsToUser(ctx context.Context, tx *gorm.DB, spaceID, userID uuid.UUID) (bool, error) {
	return false, nil
}
func (f *fakeSpaceRepo) EnsureExists(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) error {
	return nil
}

type fakeIndex struct {
	reindexCalls int
	reindexErr   error
}

func (f *fakeIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]searchindex.ChunkHit, error) {
	return nil, nil
}
func (f *fakeIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]searchindex.ChunkHit, error) {
	return nil, nil
}
func (f *fakeIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]searchindex.ImageHit, error) {
	return nil, nil
}
func (f *fakeIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error {
	f.reindexCalls++
	return f.reindexErr
}

type fakeCacher struct {
	bumped []string
}

func (f *fakeCacher) Get(ctx context.Context, key string, dest any) bool { return false }
func (f *fakeCacher) Set(ctx context.Context, key string, val any, ttl time.Duration) {}
func (f *fakeCacher) Bump(ctx context.Context, kind cache.Kind, userID, spaceID string) error {
	f.bumped = append(f.bumped, string(kind))
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

func TestSourceTypeFor(t *testing.T) {
	assert.Equal(t, "pdf", sourceTypeFor("application/pdf", "report.pdf"))
	assert.Equal(t, "html", sourceTypeFor("text/html", "page.html"))
	assert.Equal(t, "json", sourceTypeFor("application/json", "data.json"))
	assert.Equal(t, "txt", sourceTypeFor("text/plain", "notes.txt"))
	assert.Equal(t, "txt", sourceTypeFor("application/octet-stream", "unknown.bin"))
}

func TestSpacesForUser_ReturnsEveryOwnedSpaceID(t *testing.T) {
	userID := uuid.New()
	spaceA, spaceB := &types.Space{ID: uuid.New(), UserID: userID}, &types.Space{ID: uuid.New(), UserID: userID}
	spaces := &fakeSpaceRepo{bySpace: map[uuid.UUID][]*types.Space{userID: {spaceA, spaceB}}}
	ing := &Ingestor{spaces: spaces, log: testLogger(t)}

	ids, err := ing.SpacesForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{spaceA.ID, spaceB.ID}, ids)
}

func TestSpacesForUser_NoSpacesReturnsEmptySlice(t *testing.T) {
	spaces := &fakeSpaceRepo{bySpace: map[uuid.UUID][]*types.Space{}}
	ing := &Ingestor{spaces: spaces, log: testLogger(t)}

	ids, err := ing.SpacesForUser(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReindex_RebuildsIndexAndBumpsBothCacheKinds(t *testing.T) {
	idx := &fakeIndex{}
	c := &fakeCacher{}
	ing := &Ingestor{index: idx, cache: c, log: testLogger(t)}

	err := ing.Reindex(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.reindexCalls)
	assert.ElementsMatch(t, []string{string(cache.KindSearch), string(cache.KindImageSearch)}, c.bumped)
}

func TestReindex_PropagatesIndexFailure(t *testing.T) {
	idx := &fakeIndex{reindexErr: assertErr{}}
	c := &fakeCacher{}
	ing := &Ingestor{index: idx, cache: c, log: testLogger(t)}

	err := ing.Reindex(context.Background(), uuid.New(), uuid.New())
	assert.Error(t, err)
	assert.Empty(t, c.bumped, "a failed rebuild should not bump cache revisions")
}

type assertErr struct{}

func (assertErr) Error() string { return "reindex failed" }
