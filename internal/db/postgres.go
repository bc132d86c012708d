package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(cfg config.PostgresConfig, log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	log.Info("connecting to postgres")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	for _, ext := range []string{`"uuid-ossp"`, "vector"} {
		if err := gdb.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS %s;`, ext)).Error; err != nil {
			log.Error("failed to enable extension", "extension", ext, "error", err)
			return nil, fmt.Errorf("enable extension %s: %w", ext, err)
		}
	}
	log.Info("postgres extensions enabled", "extensions", []string{"uuid-ossp", "vector"})

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

// AutoMigrateAll creates/updates every MetaStore table. It is idempotent:
// safe to run on every process start, matching the teacher's
// AutoMigrate-plus-raw-SQL convention. embedDim/imageEmbedDim size the
// pgvector columns (spec.md §3 invariant 2: D=384 text, D_img=768 images by
// default, both config-driven via config.Search.EmbedDim/ImageEmbedDim).
func (s *PostgresService) AutoMigrateAll(embedDim, imageEmbedDim int) error {
	if embedDim <= 0 {
		embedDim = 384
	}
	if imageEmbedDim <= 0 {
		imageEmbedDim = 768
	}
	s.log.Info("auto migrating postgres tables")
	if err := s.db.AutoMigrate(
		&types.User{},
		&types.Space{},
		&types.Document{},
		&types.Chunk{},
		&types.ImageAsset{},
		&types.ResearchSession{},
		&types.Activity{},
	); err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}

	s.log.Info("applying schema extensions not expressible via struct tags", "embed_dim", embedDim, "image_embed_dim", imageEmbedDim)
	stmts := []string{
		fmt.Sprintf(`ALTER TABLE "chunk" ADD COLUMN IF NOT EXISTS embedding_vec vector(%d)`, embedDim),
		fmt.Sprintf(`ALTER TABLE "image_asset" ADD COLUMN IF NOT EXISTS embedding_vec vector(%d)`, imageEmbedDim),
		`ALTER TABLE "chunk" ADD COLUMN IF NOT EXISTS content_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', coalesce(text, ''))) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_content_tsv ON "chunk" USING GIN (content_tsv)`,
		`ALTER TABLE "document" ADD COLUMN IF NOT EXISTS title_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', coalesce(title, ''))) STORED`,
		`ALTER TABLE "document" ADD COLUMN IF NOT EXISTS file_name_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', coalesce(original_name, ''))) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_document_title_tsv ON "document" USING GIN (title_tsv)`,
		`CREATE INDEX IF NOT EXISTS idx_document_file_name_tsv ON "document" USING GIN (file_name_tsv)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chunk_document_index ON "chunk" (document_id, chunk_index)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_embedding_vec ON "chunk" USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)`,
		`ALTER TABLE "space" ADD CONSTRAINT fk_space_user FOREIGN KEY (user_id) REFERENCES "app_user"(id) ON DELETE CASCADE`,
		`ALTER TABLE "document" ADD CONSTRAINT fk_document_space FOREIGN KEY (space_id) REFERENCES "space"(id) ON DELETE CASCADE`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Warn("schema extension statement failed (may already exist)", "stmt", stmt, "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
