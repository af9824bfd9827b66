package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lvidal/pricealert/internal/handlers"
)

func registerProductRoutes(api *gin.RouterGroup, h *handlers.ProductHandler) {
	products := api.Group("/products")
	{
		products.POST("", h.Create)
		products.GET("", h.List)
		products.GET("/:id", h.Get)
		products.PATCH("/:id/price", h.UpdatePrice)
		products.DELETE("/:id", h.Deactivate)
		products.POST("/:id/scrape", h.Scrape)
		products.GET("/:id/history", h.History)

		products.POST("/:id/variants", h.CreateVariant)
		products.GET("/:id/variants", h.ListVariants)
	}

	api.PATCH("/variants/:variantId/price", h.UpdateVariantPrice)
}
