package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"debate_live/internal/api"
	"debate_live/internal/logger"
	"debate_live/internal/models"
	"debate_live/internal/repository"
	"debate_live/internal/service"
	"debate_live/internal/storage"
	"debate_live/internal/utils"
	"debate_live/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.New(cfg.Log.Level)
	utils.SetSecret(cfg.JWT.Secret)

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port,
		cfg.DB.SSLMode, cfg.DB.TimeZone)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Keyword{},
		&models.DebateMessage{},
		&models.ChatMessage{},
		&models.RoomParticipant{},
	); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, cfg, zlog)

	// 啟動刪除排程的背景掃描
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go services.Room.RunDeletionSweep(ctx)

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services, zlog)

	// 啟動伺服器
	zlog.Info().Str("address", cfg.Server.Address).Msg("server starting")
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
