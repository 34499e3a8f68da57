package main

import (
	"context"
	"errors"
	"flag"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/document"
	"collab-backend/internal/logger"
	"collab-backend/internal/model"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list trashed documents without deleting")
	flag.Parse()

	logger.Setup(logger.Config{Level: "info", Pretty: true})

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("ℹ️ No .env file found, using environment variables")
	}

	// Connect to database
	db, err := database.ConnectDB(config.DatabaseFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	log.Info().Bool("dryRun", *dryRun).Msg("Database connected. Starting trash purge...")

	store := document.NewGormStore(db)
	ctx := context.Background()
	purged := 0

	// 하위 문서부터: 상위 삭제가 하위까지 지우므로 이미 없는 문서는 건너뛴다
	for _, kind := range []model.DocumentKind{model.KindFile, model.KindFolder, model.KindWorkspace} {
		docs, err := store.ListTrashed(ctx, kind)
		if err != nil {
			log.Fatal().Err(err).Str("kind", string(kind)).Msg("Failed to list trashed documents")
		}
		log.Info().Str("kind", string(kind)).Int("count", len(docs)).Msg("Found trashed documents")

		for _, doc := range docs {
			if *dryRun {
				log.Info().Str("kind", string(kind)).Str("id", doc.ID).Str("title", doc.Title).Str("note", doc.InTrash).Msg("Would delete")
				continue
			}

			refs, err := store.Delete(ctx, kind, doc.ID)
			if errors.Is(err, document.ErrNotFound) {
				continue
			}
			if err != nil {
				log.Fatal().Err(err).Str("kind", string(kind)).Str("id", doc.ID).Msg("Failed to delete document")
			}
			purged += len(refs)
			log.Info().Str("kind", string(kind)).Str("id", doc.ID).Int("rows", len(refs)).Msg("Deleted")
		}
	}

	log.Info().Int("rows", purged).Msg("Trash successfully purged.")
}
