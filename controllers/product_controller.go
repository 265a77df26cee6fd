package controllers

import (
	"net/http"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductController exposes the catalog endpoints.
type ProductController struct {
	products *services.ProductService
}

// NewProductController creates a ProductController.
func NewProductController(products *services.ProductService) *ProductController {
	return &ProductController{products: products}
}

// ListProducts handles GET /api/products.
func (pc *ProductController) ListProducts(c *gin.Context) {
	page, limit := pagination(c)

	products, total, err := pc.products.List(c.Request.Context(), page, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetProduct handles GET /api/products/:id.
func (pc *ProductController) GetProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		apperrors.HandleError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid product id"))
		return
	}

	product, err := pc.products.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// CreateProduct handles POST /api/admin/products.
func (pc *ProductController) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := pc.products.Create(c.Request.Context(), &product); err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
}

// productUpdateFields maps the client-editable catalog fields to their
// stored names. Everything else is dropped; in particular stock fields are
// absent because stock changes only through order confirmation.
var productUpdateFields = map[string]string{
	"name":        "name",
	"category":    "category",
	"subcategory": "subcategory",
	"price":       "price",
	"salePrice":   "sale_price",
	"currency":    "currency",
	"images":      "images",
	"sizes":       "sizes",
	"colors":      "colors",
	"description": "description",
	"material":    "material",
}

// buildProductUpdates keeps only whitelisted fields from a raw update body.
func buildProductUpdates(body map[string]interface{}) bson.M {
	updates := bson.M{}
	for key, value := range body {
		if field, ok := productUpdateFields[key]; ok {
			updates[field] = value
		}
	}
	return updates
}

// UpdateProduct handles PATCH /api/admin/products/:id.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		apperrors.HandleError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid product id"))
		return
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err)
		return
	}
	updates := buildProductUpdates(body)
	if len(updates) == 0 {
		apperrors.HandleError(c, apperrors.WithMessage(apperrors.ErrValidation, "Nothing to update"))
		return
	}

	if err := pc.products.Update(c.Request.Context(), id, updates); err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PresignUpload handles POST /api/admin/products/upload-url. Returns a
// short-lived direct-to-S3 upload grant for a product image.
func (pc *ProductController) PresignUpload(c *gin.Context) {
	var req struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"contentType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	ticket, err := pc.products.PresignImageUpload(c.Request.Context(), req.Filename, req.ContentType)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": ticket})
}
