package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"collab-backend/internal/config"
	"collab-backend/internal/logger"
	"collab-backend/internal/model"
)

func main() {
	logger.Setup(logger.Config{Level: "info", Pretty: true})

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("ℹ️ No .env file found, using environment variables")
	}

	// Database connection
	dbCfg := config.DatabaseFromEnv()
	db, err := gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// 테이블 존재 여부
	for _, kind := range []model.DocumentKind{model.KindWorkspace, model.KindFolder, model.KindFile} {
		if !db.Migrator().HasTable(kind.TableName()) {
			fmt.Printf("❌ Table %s does NOT exist!\n", kind.TableName())
			fmt.Println("⚠️  Start the server once to run migrations")
			return
		}
	}

	// 종류별 문서 통계
	type KindStats struct {
		Total   int64
		Trashed int64
		Empty   int64
	}

	fmt.Println("📈 Document Statistics:")
	for _, kind := range []model.DocumentKind{model.KindWorkspace, model.KindFolder, model.KindFile} {
		var stats KindStats
		query := `
			SELECT
				COUNT(*) as total,
				COUNT(CASE WHEN in_trash IS NOT NULL AND in_trash <> '' THEN 1 END) as trashed,
				COUNT(CASE WHEN data IS NULL OR data = '' THEN 1 END) as empty
			FROM ` + kind.TableName()
		if err := db.Raw(query).Scan(&stats).Error; err != nil {
			log.Fatal().Err(err).Str("kind", string(kind)).Msg("Failed to get statistics")
		}
		fmt.Printf("  - %-9s total: %d, trashed: %d, no contents: %d\n", kind, stats.Total, stats.Trashed, stats.Empty)
	}
	fmt.Println()

	// 공동 편집자
	var collaborators int64
	if err := db.Model(&model.Collaborator{}).Count(&collaborators).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to count collaborators")
	}
	fmt.Printf("👥 Collaborator rows: %d\n", collaborators)
	fmt.Println()

	// 최근 생성된 파일
	var files []model.File
	if err := db.Order("created_at DESC").Limit(10).Find(&files).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to get recent files")
	}

	fmt.Println("📄 Recent Files (last 10):")
	for _, f := range files {
		fmt.Printf("  - ID: %s, Workspace: %s, Title: %s, Bytes: %d\n",
			f.ID, f.WorkspaceID, f.Title, dataLen(f.Data))
	}
}

func dataLen(data *string) int {
	if data == nil {
		return 0
	}
	return len(*data)
}
