package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
)

// lexicalBoostProperties carries the same field-boost shape as the
// metastore backend's weighted ts_rank_cd (spec.md §4.E: text:1.0,
// title:2.5, file_name:2.0) into Weaviate's BM25 query syntax, where a
// `^weight` suffix on a property name scales that property's contribution
// to the match score.
var lexicalBoostProperties = []string{"text^1", "title^2.5", "fileName^2.0"}

const weaviateChunkClass = "RagChunk"
const weaviateImageClass = "RagImage"

// weaviateIndex implements SearchIndex against a Weaviate cluster, issuing
// a BM25 query for LexicalSearch and a nearVector query for KNNSearch as two
// separate calls, like the Postgres backend. Grounded on
// original_source/opensearch_adapter.py's per-tenant filter clauses and
// field-boost shape (text:1.0, title:2.5, file_name:2.0), translated from
// OpenSearch's query DSL into Weaviate's GraphQL `where`/`bm25` arguments
// (the boost ratios become `^weight` suffixes on the BM25 property list,
// see lexicalBoostProperties).
// This backend is rebuildable from MetaStore: Reindex re-derives every
// object from repos.ChunkRepo/ImageAssetRepo.
type weaviateIndex struct {
	client    *weaviate.Client
	chunkRepo repos.ChunkRepo
	imageRepo repos.ImageAssetRepo
	embedder  generator.Embedder
	log       *logger.Logger
}

func NewWeaviate(host, scheme string, chunkRepo repos.ChunkRepo, imageRepo repos.ImageAssetRepo, embedder generator.Embedder, log *logger.Logger) (SearchIndex, error) {
	cli := weaviate.New(weaviate.Config{Host: host, Scheme: scheme})
	return &weaviateIndex{
		client:    cli,
		chunkRepo: chunkRepo,
		imageRepo: imageRepo,
		embedder:  embedder,
		log:       log.With("component", "SearchIndex", "backend", "searchindex"),
	}, nil
}

func tenantWhere(userID, spaceID uuid.UUID) *filters.WhereBuilder {
	operands := []*filters.WhereBuilder{
		filters.Where().WithPath([]string{"userId"}).WithOperator(filters.Equal).WithValueString(userID.String()),
	}
	if spaceID != uuid.Nil {
		operands = append(operands, filters.Where().WithPath([]string{"spaceId"}).WithOperator(filters.Equal).WithValueString(spaceID.String()))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

func (w *weaviateIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkHit, error) {
	fields := []graphql.Field{
		{Name: "chunkId"}, {Name: "documentId"}, {Name: "text"}, {Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}
	resp, err := w.client.GraphQL().Get().
		WithClassName(weaviateChunkClass).
		WithFields(fields...).
		WithBM25(w.client.GraphQL().Bm25ArgBuilder().WithQuery(query).WithProperties(lexicalBoostProperties...)).
		WithWhere(tenantWhere(userID, spaceID)).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate bm25 query: %w", err)
	}
	return decodeChunkHits(resp, weaviateChunkClass, "score")
}

func (w *weaviateIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkHit, error) {
	fields := []graphql.Field{
		{Name: "chunkId"}, {Name: "documentId"}, {Name: "text"}, {Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(queryVec)
	resp, err := w.client.GraphQL().Get().
		WithClassName(weaviateChunkClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithWhere(tenantWhere(userID, spaceID)).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate nearVector query: %w", err)
	}
	return decodeChunkHits(resp, weaviateChunkClass, "distance")
}

func (w *weaviateIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageHit, error) {
	fields := []graphql.Field{
		{Name: "imageId"}, {Name: "documentId"}, {Name: "caption"}, {Name: "tags"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}
	where := tenantWhere(userID, spaceID)
	if len(tags) > 0 {
		where = filters.Where().WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{
			where,
			filters.Where().WithPath([]string{"tags"}).WithOperator(filters.ContainsAny).WithValueText(tags...),
		})
	}
	getBuilder := w.client.GraphQL().Get().
		WithClassName(weaviateImageClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(topK)
	if len(queryVec) > 0 {
		getBuilder = getBuilder.WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(queryVec))
	} else if textQuery != "" {
		getBuilder = getBuilder.WithBM25(w.client.GraphQL().Bm25ArgBuilder().WithQuery(textQuery).WithProperties("caption", "ocrText"))
	}
	resp, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate image query: %w", err)
	}
	return decodeImageHits(resp)
}

// Reindex rebuilds every chunk object for one tenant's documents from
// MetaStore, the authoritative system of record, matching
// original_source/reindex_cli.py's recovery path. Image objects follow the
// same batcher shape against weaviateImageClass (omitted here since the
// metastore backend remains the default for images; see searchindex.go).
func (w *weaviateIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error {
	if _, err := w.client.Batch().ObjectsBatchDeleter().WithClassName(weaviateChunkClass).WithWhere(tenantWhere(userID, spaceID)).Do(ctx); err != nil {
		return fmt.Errorf("weaviate reindex delete: %w", err)
	}
	chunks, err := w.chunkRepo.ListBySpace(ctx, nil, userID, spaceID)
	if err != nil {
		return fmt.Errorf("reindex: list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}
	batcher := w.client.Batch().ObjectsBatcher()
	for _, c := range chunks {
		vec := make([]float32, 0)
		if len(c.Embedding) > 0 {
			if v, err := decodeEmbeddingJSON(c.Embedding); err == nil {
				vec = v
			}
		}
		title, fileName := "", ""
		if c.Document != nil {
			title = c.Document.Title
			fileName = c.Document.OriginalName
		}
		obj := &models.Object{
			Class: weaviateChunkClass,
			Properties: map[string]any{
				"chunkId":    c.ID.String(),
				"documentId": c.DocumentID.String(),
				"userId":     userID.String(),
				"spaceId":    spaceID.String(),
				"text":       c.Text,
				"title":      title,
				"fileName":   fileName,
				"createdAt":  c.CreatedAt.UTC().Format(time.RFC3339),
			},
		}
		if len(vec) > 0 {
			obj.Vector = vec
		}
		batcher = batcher.WithObjects(obj)
	}
	if _, err := batcher.Do(ctx); err != nil {
		return fmt.Errorf("weaviate reindex batch: %w", err)
	}
	return nil
}

func decodeEmbeddingJSON(raw []byte) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeChunkHits(resp *models.GraphQLResponse, className string, scoreField string) ([]ChunkHit, error) {
	if resp == nil || len(resp.Errors) > 0 {
		if resp != nil && len(resp.Errors) > 0 {
			return nil, fmt.Errorf("weaviate graphql error: %v", resp.Errors[0].Message)
		}
		return nil, nil
	}
	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := data[className].([]any)
	if !ok {
		return nil, nil
	}
	raw := make([]float64, 0, len(rows))
	hits := make([]ChunkHit, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		h := ChunkHit{}
		if s, ok := row["chunkId"].(string); ok {
			h.ChunkID, _ = uuid.Parse(s)
		}
		if s, ok := row["documentId"].(string); ok {
			h.DocumentID, _ = uuid.Parse(s)
		}
		if s, ok := row["text"].(string); ok {
			h.Text = s
		}
		if s, ok := row["createdAt"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				h.CreatedAt = ts
			}
		}
		var score float64
		if add, ok := row["_additional"].(map[string]any); ok {
			if v, ok := add[scoreField].(float64); ok {
				score = v
				if scoreField == "distance" {
					score = 1.0 - v
				}
			}
		}
		raw = append(raw, score)
		hits = append(hits, h)
	}
	norm := normalizeMinMax(raw)
	for i := range hits {
		hits[i].Score = norm[i]
	}
	return hits, nil
}

func decodeImageHits(resp *models.GraphQLResponse) ([]ImageHit, error) {
	if resp == nil || len(resp.Errors) > 0 {
		if resp != nil && len(resp.Errors) > 0 {
			return nil, fmt.Errorf("weaviate graphql error: %v", resp.Errors[0].Message)
		}
		return nil, nil
	}
	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := data[weaviateImageClass].([]any)
	if !ok {
		return nil, nil
	}
	raw := make([]float64, 0, len(rows))
	hits := make([]ImageHit, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		h := ImageHit{}
		if s, ok := row["imageId"].(string); ok {
			h.ImageID, _ = uuid.Parse(s)
		}
		if s, ok := row["documentId"].(string); ok {
			h.DocumentID, _ = uuid.Parse(s)
		}
		if s, ok := row["caption"].(string); ok {
			h.Caption = s
		}
		if rawTags, ok := row["tags"].([]any); ok {
			for _, t := range rawTags {
				if s, ok := t.(string); ok {
					h.Tags = append(h.Tags, s)
				}
			}
		}
		var score float64
		if add, ok := row["_additional"].(map[string]any); ok {
			if v, ok := add["score"].(float64); ok {
				score = v
			}
		}
		raw = append(raw, score)
		hits = append(hits, h)
	}
	norm := normalizeMinMax(raw)
	for i := range hits {
		hits[i].Score = norm[i]
	}
	return hits, nil
}
