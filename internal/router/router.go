package router

import (
	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/handlers"
	"classroom-poll-backend/internal/middleware"
	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

func New(db *gorm.DB, room *classroom.Room, authService *services.AuthService, corsOrigins []string) *gin.Engine {
	pollHandler := handlers.NewPollHandler(room)
	chatHandler := handlers.NewChatHandler(room)
	participantHandler := handlers.NewParticipantHandler(room, authService)
	wsHandler := handlers.NewWSHandler(room)
	healthHandler := handlers.NewHealthHandler(db)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = corsOrigins
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", healthHandler.Check)
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/join", participantHandler.Join)
		api.POST("/heartbeat", participantHandler.Heartbeat)
		api.GET("/participants", participantHandler.List)

		api.GET("/active-poll", pollHandler.ActivePoll)
		api.GET("/history", pollHandler.History)
		api.POST("/vote", pollHandler.Vote)

		api.GET("/chat", chatHandler.History)
		api.POST("/chat", chatHandler.Post)

		teacher := api.Group("")
		teacher.Use(
			middleware.ParticipantAuth(authService),
			middleware.RequireRole(models.RoleTeacher),
			middleware.RequireSeat(room.Presence()),
		)
		{
			teacher.POST("/polls", pollHandler.CreatePoll)
			teacher.POST("/participants/:id/kick", participantHandler.Kick)
		}
	}

	return r
}
