package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.POST("/valuations", handler.CreateValuation)
		api.GET("/valuations/:id", handler.GetValuation)
		api.POST("/candidates/import", handler.ImportCandidates)
		api.GET("/sources", handler.ListSources)
		api.POST("/streets/top", handler.TopStreets)
	}
}
