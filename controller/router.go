package controller

import (
	"net/http"

	"perma-store/controller/handler"
	"perma-store/controller/respond"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter build the HTTP router
func NewRouter(uploadHandler *handler.UploadHandler, fetchHandler *handler.FetchHandler,
	adminHandler *handler.AdminHandler) *gin.Engine {

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))
	r.Use(respond.TimingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		files := api.Group("/files")
		{
			files.POST("/upload", uploadHandler.Upload)
			files.POST("/chunk", uploadHandler.Chunk)
			files.GET("", fetchHandler.List)
			files.GET("/:fileId", fetchHandler.Download)
			files.GET("/:fileId/info", fetchHandler.Info)
			files.GET("/:fileId/payments", fetchHandler.Payments)
		}

		api.GET("/renewals/upcoming", adminHandler.Upcoming)
		api.POST("/admin/renew", adminHandler.Renew)
		api.GET("/stats", adminHandler.Stats)
	}

	return r
}
