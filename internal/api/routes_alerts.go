package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lvidal/pricealert/internal/handlers"
)

func registerAlertRoutes(api *gin.RouterGroup, h *handlers.AlertHandler) {
	alerts := api.Group("/alerts")
	{
		alerts.POST("", h.Create)
		alerts.GET("", h.List)
		alerts.GET("/:id", h.Get)
		alerts.PATCH("/:id", h.Update)
		alerts.DELETE("/:id", h.Delete)
	}
}
