package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"debate_live/internal/api/handlers"
	"debate_live/internal/middleware"
	"debate_live/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services, logger zerolog.Logger) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	roomHandler := handlers.NewRoomHandler(services.Room, services.User, services.Presence)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager, services.Debate, logger)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 辯論室相關
		rooms := authorized.Group("/rooms")
		{
			// 基本操作
			rooms.GET("", roomHandler.ListRooms)                // 獲取房間列表
			rooms.GET("/hot", roomHandler.HotRooms)             // 熱門房間
			rooms.GET("/my", roomHandler.MyRooms)               // 我參與的房間
			rooms.POST("", roomHandler.CreateRoom)              // 創建房間
			rooms.GET("/:id", roomHandler.GetRoom)              // 獲取房間信息與辯論歷史
			rooms.GET("/:id/chat", roomHandler.GetChatMessages) // 聊天歷史

			// 房間參與
			rooms.POST("/:id/join", roomHandler.JoinRoom)   // 以辯論者B身分加入
			rooms.POST("/:id/enter", roomHandler.EnterRoom) // 進入房間（出席）
			rooms.POST("/:id/leave", roomHandler.LeaveRoom) // 離開房間

			// WebSocket 連接：辯論通道與觀眾聊天通道
			rooms.GET("/:id/ws", wsHandler.HandleDebateSocket)
			rooms.GET("/:id/chat/ws", wsHandler.HandleChatSocket)
		}
	}
}
