package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key shapes are carried over verbatim from original_source/search.py so a
// reindex against the same tenant produces the same invalidation behavior
// the original relied on.

func SemanticSearchKey(rev int64, userID, spaceID string, topK int, query string) string {
	return fmt.Sprintf("sem:%d:%s:%s:%d:%s", rev, userID, spaceID, topK, query)
}

func FullTextSearchKey(rev int64, userID, spaceID string, topK int, query string) string {
	return fmt.Sprintf("fts:%d:%s:%s:%d:%s", rev, userID, spaceID, topK, query)
}

func HybridSearchKey(rev int64, userID, spaceID string, topK int, query string) string {
	return fmt.Sprintf("hyb:%d:%s:%s:%d:%s", rev, userID, spaceID, topK, query)
}

func ImageSearchKey(rev int64, userID, spaceID string, topK int, query string) string {
	return fmt.Sprintf("img:%d:%s:%s:%d:%s", rev, userID, spaceID, topK, query)
}

// RAGKey mirrors _rag_cache_key: a digest of query + the fingerprint of the
// retrieved chunk set + the assembled context, so the same question against
// a changed document set misses instead of returning a stale answer.
func RAGKey(rev int64, provider, mode, userID, spaceID string, topK int, query string, chunkFingerprint string, context string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{'|'})
	h.Write([]byte(chunkFingerprint))
	h.Write([]byte{'|'})
	h.Write([]byte(context))
	digest := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("rag:%d:%s:%s:%s:%s:%d:%s", rev, provider, mode, userID, spaceID, topK, digest)
}

func DeepResearchSessionKey(userID, spaceID, conversationID string) string {
	return fmt.Sprintf("dr:%s:%s:%s", userID, spaceID, conversationID)
}

// ChunkFingerprint hashes the ordered chunk IDs a RAG answer was built
// from, used as part of RAGKey so the cache is sensitive to which
// evidence actually backed the answer, not only the query text.
func ChunkFingerprint(chunkIDs []string) string {
	h := sha256.New()
	for _, id := range chunkIDs {
		h.Write([]byte(id))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
