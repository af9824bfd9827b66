package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvidal/pricealert/internal/models"
	"github.com/lvidal/pricealert/internal/scraper"
	"github.com/lvidal/pricealert/internal/services"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/response"
)

// ProductHandler exposes product, variant, history, and scrape endpoints.
type ProductHandler struct {
	products *services.ProductService
	scraper  *scraper.Scraper
	log      *zap.Logger
}

// NewProductHandler constructs a ProductHandler. The scraper may be nil, in
// which case the scrape endpoint reports failures only.
func NewProductHandler(products *services.ProductService, sc *scraper.Scraper) (*ProductHandler, error) {
	if products == nil {
		return nil, errors.New("product handler: product service is required")
	}
	return &ProductHandler{
		products: products,
		scraper:  sc,
		log:      logger.WithModule("handlers.products"),
	}, nil
}

type createProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	URL         string  `json:"url" validate:"required,url"`
	BasePrice   float64 `json:"base_price" validate:"gte=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	Description string  `json:"description" validate:"max=1000"`
	Brand       string  `json:"brand" validate:"max=100"`
	Category    string  `json:"category" validate:"max=100"`
}

// Create registers a product for the caller.
func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductRequest
	if !bindAndValidate(c, &req) {
		return
	}

	product, err := h.products.Create(requestContext(c), services.CreateProductInput{
		Name:        req.Name,
		URL:         req.URL,
		BasePrice:   req.BasePrice,
		ImageURL:    req.ImageURL,
		Description: req.Description,
		Brand:       req.Brand,
		Category:    req.Category,
		CreatedBy:   currentUserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"product": product})
}

// List returns the caller's active products, optionally filtered by the
// `q` query parameter.
func (h *ProductHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	ownerID := currentUserID(c)

	var (
		products []models.Product
		err      error
	)
	if term := c.Query("q"); term != "" {
		products, err = h.products.Search(ctx, ownerID, term)
	} else {
		products, err = h.products.ListActive(ctx, ownerID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"products": products})
}

// Get returns a single product the caller owns.
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.products.Get(requestContext(c), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"product": product})
}

type updatePriceRequest struct {
	Price float64 `json:"price" validate:"gt=0"`
}

// UpdatePrice sets a new base price for an owned product.
func (h *ProductHandler) UpdatePrice(c *gin.Context) {
	var req updatePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.products.UpdateBasePrice(requestContext(c), c.Param("id"), currentUserID(c), req.Price); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// Deactivate soft-disables an owned product.
func (h *ProductHandler) Deactivate(c *gin.Context) {
	if err := h.products.Deactivate(requestContext(c), c.Param("id"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}

type createVariantRequest struct {
	Name   string  `json:"name" validate:"required,max=200"`
	Price  float64 `json:"price" validate:"gte=0"`
	Size   string  `json:"size" validate:"max=50"`
	Flavor string  `json:"flavor" validate:"max=50"`
	Color  string  `json:"color" validate:"max=50"`
	SKU    string  `json:"sku" validate:"max=100"`
}

// CreateVariant adds a variant to an owned product.
func (h *ProductHandler) CreateVariant(c *gin.Context) {
	var req createVariantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	variant, err := h.products.CreateVariant(requestContext(c), services.CreateVariantInput{
		ProductID: c.Param("id"),
		Name:      req.Name,
		Price:     req.Price,
		Attributes: models.VariantAttributes{
			Size:   req.Size,
			Flavor: req.Flavor,
			Color:  req.Color,
		},
		SKU:       req.SKU,
		CreatedBy: currentUserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"variant": variant})
}

// ListVariants returns the available variants of a product.
func (h *ProductHandler) ListVariants(c *gin.Context) {
	variants, err := h.products.ListAvailableVariants(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"variants": variants})
}

// UpdateVariantPrice sets a new price on a variant of an owned product.
func (h *ProductHandler) UpdateVariantPrice(c *gin.Context) {
	var req updatePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.products.UpdateVariantPrice(requestContext(c), c.Param("variantId"), currentUserID(c), req.Price); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// History returns the price history of an owned product, or of one of its
// variants when `variant_id` is supplied.
func (h *ProductHandler) History(c *gin.Context) {
	var variantID *string
	if v := c.Query("variant_id"); v != "" {
		variantID = &v
	}

	entries, err := h.products.History(requestContext(c), c.Param("id"), currentUserID(c), variantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": entries})
}

// Scrape fetches the product's page, extracts fresh data, and applies the
// outcome to the stored record.
func (h *ProductHandler) Scrape(c *gin.Context) {
	ctx := requestContext(c)
	ownerID := currentUserID(c)
	productID := c.Param("id")

	product, err := h.products.Get(ctx, productID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	input := services.ScrapeUpdateInput{}
	if h.scraper != nil {
		result, scrapeErr := h.scraper.Fetch(ctx, product.URL)
		if scrapeErr != nil {
			h.log.Warn("scrape failed",
				zap.String("product_id", productID),
				zap.String("url", product.URL),
				zap.Error(scrapeErr),
			)
		} else {
			input = services.ScrapeUpdateInput{
				Price:       result.Price,
				Title:       result.Title,
				ImageURL:    result.ImageURL,
				Description: result.Description,
				Brand:       result.Brand,
				Succeeded:   true,
			}
		}
	}

	updated, err := h.products.ApplyScrapeResult(ctx, productID, ownerID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"product": updated,
		"scraped": input.Succeeded,
	})
}
