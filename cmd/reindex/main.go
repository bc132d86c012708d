// Command reindex is an operator CLI that rebuilds the SearchIndex for one
// user (one space, or every space of that user) from MetaStore, the same path POST
// /admin/reindex drives. Grounded on the cobra.Command shape used across
// the retrieved pack's CLIs (flags bound once, Run closes over resolved
// deps), adapted from a daemon/controller command to a one-shot job.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/clients/pinecone"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/db"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/searchindex"
)

func main() {
	var userIDRaw, spaceIDRaw string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the SearchIndex for one tenant from MetaStore",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userIDRaw)
			if err != nil {
				return fmt.Errorf("--user is required and must be a uuid: %w", err)
			}
			spaceID := uuid.Nil
			if spaceIDRaw != "" {
				spaceID, err = uuid.Parse(spaceIDRaw)
				if err != nil {
					return fmt.Errorf("--space must be a uuid: %w", err)
				}
			}
			return run(cmd.Context(), userID, spaceID)
		},
	}
	cmd.Flags().StringVar(&userIDRaw, "user", "", "tenant user id (required)")
	cmd.Flags().StringVar(&spaceIDRaw, "space", "", "tenant space id (optional, default all of the user's spaces)")
	_ = cmd.MarkFlagRequired("user")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, userID, spaceID uuid.UUID) error {
	log, err := logger.New("production")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cfg := config.Load(log)

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	gdb := pg.DB()

	chunkRepo := repos.NewChunkRepo(gdb, log)
	imageRepo := repos.NewImageAssetRepo(gdb, log)

	genProvider, err := generator.Resolve(cfg.Providers.EmbedderProvider, log)
	if err != nil {
		return fmt.Errorf("resolve embedder: %w", err)
	}

	var index searchindex.SearchIndex
	switch cfg.Search.Backend {
	case "searchindex":
		host := config.GetEnv("WEAVIATE_HOST", "localhost:8081", log)
		scheme := config.GetEnv("WEAVIATE_SCHEME", "http", log)
		index, err = searchindex.NewWeaviate(host, scheme, chunkRepo, imageRepo, genProvider, log)
		if err != nil {
			return fmt.Errorf("init weaviate: %w", err)
		}
	default:
		index = searchindex.NewPostgres(gdb, chunkRepo, imageRepo, genProvider, log)
	}

	if apiKey := os.Getenv("PINECONE_API_KEY"); apiKey != "" {
		pc, err := pinecone.New(log, pinecone.Config{APIKey: apiKey})
		if err != nil {
			log.Warn("pinecone client init failed, image reindex stays on the primary backend", "error", err)
		} else if store, err := pinecone.NewVectorStore(log, pc); err != nil {
			log.Warn("pinecone vector store init failed, image reindex stays on the primary backend", "error", err)
		} else {
			index = searchindex.NewPineconeImages(index, store, imageRepo, log)
		}
	}

	if err := index.Reindex(ctx, userID, spaceID); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	memCache, err := cache.New(cfg.Redis, cfg.Cache, log)
	if err == nil {
		_ = memCache.Bump(ctx, cache.KindSearch, userID.String(), spaceID.String())
		_ = memCache.Bump(ctx, cache.KindImageSearch, userID.String(), spaceID.String())
	} else {
		log.Warn("cache bump skipped, cache unavailable", "error", err)
	}

	log.Info("reindex complete", "user_id", userID, "space_id", spaceID)
	return nil
}
