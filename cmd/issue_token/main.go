package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"collab-backend/internal/auth"
	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/handler"
	"collab-backend/internal/logger"
	"collab-backend/internal/model"
)

// 개발/부하 테스트용 액세스 토큰 발급 (사용자가 없으면 생성)
func main() {
	email := flag.String("email", "", "user email")
	name := flag.String("name", "", "display name for a newly created user")
	flag.Parse()

	logger.Setup(logger.Config{Level: "warn", Pretty: true})

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: issue_token -email user@example.com [-name Handle]")
		os.Exit(2)
	}

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Connect to database
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var user model.User
	err = db.Where("email = ?", *email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{Email: *email}
		if *name != "" {
			user.FullName = name
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatal().Err(err).Msg("Failed to create user")
		}
		log.Warn().Str("id", user.ID).Msg("Created user")
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up user")
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)
	token, err := handler.IssueAccessToken(jwtManager, &user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Println(token)
}
