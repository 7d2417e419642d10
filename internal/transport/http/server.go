package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "medsearch/internal/app"
	"medsearch/internal/bootstrap"
	"medsearch/internal/repository"
	"medsearch/internal/transport/http/handler"
	"medsearch/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	authHandler := handler.NewAuthHandler(authService)
	searchHandler := handler.NewSearchHandler(app.Search, app.Config.Search.DefaultTopK)
	ingestionHandler := handler.NewIngestionHandler(app.Ingestion, app.Docs)
	documentHandler := handler.NewDocumentHandler(app.Index)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	protected := v1.Group("")
	protected.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	protected.POST("/search", searchHandler.Search)
	protected.POST("/folders/ingest", ingestionHandler.Start)
	protected.GET("/folders/ingestions", ingestionHandler.List)
	protected.GET("/folders/ingestions/:id", ingestionHandler.Get)
	protected.GET("/folders/browse", ingestionHandler.Browse)
	protected.GET("/documents", documentHandler.List)

	return router
}
