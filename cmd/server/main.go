// Command server is the core's HTTP entrypoint, wiring logger -> config ->
// storage/search/generation clients -> repos -> domain packages -> router,
// grounded on the teacher's cmd/main.go assembly order (logger first, env
// next, Postgres + AutoMigrate, then repos, then services, then handlers,
// then router.Run).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/blobstore"
	"github.com/yungbote/ragcore/internal/clients/gcp"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/clients/pinecone"
	"github.com/yungbote/ragcore/internal/clients/redis"
	"github.com/yungbote/ragcore/internal/clients/websearch"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/db"
	"github.com/yungbote/ragcore/internal/deepresearch"
	"github.com/yungbote/ragcore/internal/extractor"
	"github.com/yungbote/ragcore/internal/handlers"
	"github.com/yungbote/ragcore/internal/ingestor"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/middleware"
	"github.com/yungbote/ragcore/internal/observability"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/retriever"
	"github.com/yungbote/ragcore/internal/searchindex"
	"github.com/yungbote/ragcore/internal/server"
	"github.com/yungbote/ragcore/internal/synthesizer"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("loading configuration")
	cfg := config.Load(log)

	shutdownOtel := observability.Init(context.Background(), log, observability.Config{ServiceName: "ragcore"})
	defer shutdownOtel(context.Background())

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := pg.AutoMigrateAll(cfg.Search.EmbedDim, cfg.Search.ImageEmbedDim); err != nil {
		log.Error("postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := pg.DB()

	log.Info("setting up repos")
	userRepo := repos.NewUserRepo(gdb, log)
	spaceRepo := repos.NewSpaceRepo(gdb, log)
	documentRepo := repos.NewDocumentRepo(gdb, log)
	chunkRepo := repos.NewChunkRepo(gdb, log)
	imageRepo := repos.NewImageAssetRepo(gdb, log)
	researchSessionRepo := repos.NewResearchSessionRepo(gdb, log)
	activityRepo := repos.NewActivityRepo(gdb, log)

	log.Info("setting up cache and activity bus")
	memCache, err := cache.New(cfg.Redis, cfg.Cache, log)
	if err != nil {
		log.Error("cache init failed", "error", err)
		os.Exit(1)
	}
	activityBus, err := redis.NewActivityBus(cfg.Redis, log)
	if err != nil {
		log.Error("activity bus init failed", "error", err)
		os.Exit(1)
	}

	log.Info("setting up generation/embedding provider", "generator", cfg.Providers.GeneratorProvider, "embedder", cfg.Providers.EmbedderProvider)
	genProvider, err := generator.Resolve(cfg.Providers.GeneratorProvider, log)
	if err != nil {
		log.Error("generator provider init failed", "error", err)
		os.Exit(1)
	}

	log.Info("setting up blob storage")
	blobs, err := blobstore.NewGCS(log)
	if err != nil {
		log.Error("blob storage init failed", "error", err)
		os.Exit(1)
	}

	log.Info("setting up document intelligence clients")
	docai, err := gcp.NewDocAI(log)
	if err != nil {
		log.Warn("document ai init failed, pdf/office extraction will fall back to strict text mode", "error", err)
	}
	vision, err := gcp.NewVision(log)
	if err != nil {
		log.Warn("vision init failed, image ocr will be skipped", "error", err)
	}

	log.Info("setting up search index backend", "backend", cfg.Search.Backend)
	var index searchindex.SearchIndex
	switch cfg.Search.Backend {
	case "searchindex":
		host := config.GetEnv("WEAVIATE_HOST", "localhost:8081", log)
		scheme := config.GetEnv("WEAVIATE_SCHEME", "http", log)
		index, err = searchindex.NewWeaviate(host, scheme, chunkRepo, imageRepo, genProvider, log)
		if err != nil {
			log.Error("weaviate search index init failed", "error", err)
			os.Exit(1)
		}
	default:
		index = searchindex.NewPostgres(gdb, chunkRepo, imageRepo, genProvider, log)
	}

	if apiKey := os.Getenv("PINECONE_API_KEY"); apiKey != "" {
		pc, err := pinecone.New(log, pinecone.Config{APIKey: apiKey})
		if err != nil {
			log.Warn("pinecone client init failed, image search stays on the primary backend", "error", err)
		} else if store, err := pinecone.NewVectorStore(log, pc); err != nil {
			log.Warn("pinecone vector store init failed, image search stays on the primary backend", "error", err)
		} else {
			log.Info("routing image search through pinecone")
			index = searchindex.NewPineconeImages(index, store, imageRepo, log)
		}
	}

	webSearch := websearch.Resolve(cfg.Research.WebSearchProvider, log)

	extr := extractor.New(docai, vision, genProvider, cfg.Ingest, log)
	retr := retriever.New(index, genProvider, memCache, cfg.Search, cfg.Cache, log)
	syn := synthesizer.New(retr, genProvider, memCache, cfg.Cache, cfg.Providers.GeneratorProvider, log)
	agent := deepresearch.New(researchSessionRepo, retr, genProvider, webSearch, memCache, activityBus, activityRepo, cfg.Research, log)
	ing := ingestor.New(gdb, documentRepo, chunkRepo, imageRepo, spaceRepo, activityRepo, blobs, extr, genProvider, index, memCache, activityBus, cfg.Ingest, cfg.Search, log)

	log.Info("setting up handlers")
	documentHandler := handlers.NewDocumentHandler(log, ing, documentRepo, chunkRepo, blobs)
	searchHandler := handlers.NewSearchHandler(log, retr, syn, index, genProvider, cfg.Search)
	deepResearchHandler := handlers.NewDeepResearchHandler(log, agent)

	log.Info("setting up middleware")
	tenantMiddleware := middleware.NewTenantMiddleware(log, userRepo, spaceRepo)

	log.Info("setting up router")
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:        cfg.HTTP.AllowOrigins,
		TenantMiddleware:    tenantMiddleware,
		DocumentHandler:     documentHandler,
		SearchHandler:       searchHandler,
		DeepResearchHandler: deepResearchHandler,
	})

	log.Info("server listening", "port", cfg.HTTP.Port)
	if err := router.Run(":" + cfg.HTTP.Port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
