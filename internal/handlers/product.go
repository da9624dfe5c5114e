// internal/handlers/product.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/eshop-backend/internal/i18n"
	"github.com/javajoker/eshop-backend/internal/services"
	"github.com/javajoker/eshop-backend/internal/utils"
)

// Largest number of files accepted by one upload request.
const maxImagesPerUpload = 10

type ProductHandler struct {
	productService *services.ProductService
	reviewService  *services.ReviewService
	resPerPage     int
}

func NewProductHandler(productService *services.ProductService, reviewService *services.ReviewService, resPerPage int) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		reviewService:  reviewService,
		resPerPage:     resPerPage,
	}
}

// GET /api/products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	params := services.ProductListParams{
		PaginationParams: utils.GetPaginationParams(c, h.resPerPage),
		Keyword:          c.Query("keyword"),
		Category:         c.Query("category"),
		Brand:            c.Query("brand"),
	}

	for key, target := range map[string]**decimal.Decimal{
		"min_price": &params.MinPrice,
		"max_price": &params.MaxPrice,
	} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, key), nil)
			return
		}
		*target = &value
	}

	products, total, err := h.productService.ListProducts(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SetPaginationHeaders(c, total, params.PaginationParams)
	utils.SuccessResponse(c, utils.Page("products", products, total, params.PaginationParams))
}

// GET /api/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id", "product")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, product)
}

// POST /api/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, product)
}

// PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "product")
	if !ok {
		return
	}

	var req services.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), actor, id, &req)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProductNotOwner))
			return
		}
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, product)
}

// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "product")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), actor, id); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProductNotOwner))
			return
		}
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, gin.H{"details": i18n.T(lang, i18n.KeyProductDeleted)})
}

// POST /api/products/upload_images
// Multipart form with a "product" id and one or more "images" files.
func (h *ProductHandler) UploadImages(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "form"), err.Error())
		return
	}

	productID, err := uuid.Parse(c.PostForm("product"))
	if err != nil {
		utils.NotFoundResponse(c, "product")
		return
	}

	files := form.File["images"]
	if len(files) == 0 || len(files) > maxImagesPerUpload {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "images"), nil)
		return
	}

	uploads := make([]services.ImageUpload, 0, len(files))
	for _, fh := range files {
		file, err := fh.Open()
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyProductImageInvalid, fh.Filename), nil)
			return
		}
		defer file.Close()
		uploads = append(uploads, services.ImageUpload{Filename: fh.Filename, Content: file})
	}

	images, err := h.productService.UploadImages(c.Request.Context(), productID, uploads)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, gin.H{"images": images})
}

// DELETE /api/products/:id/images/:image_id
func (h *ProductHandler) DeleteImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	productID, ok := pathID(c, "id", "product")
	if !ok {
		return
	}
	imageID, ok := pathID(c, "image_id", "product_image")
	if !ok {
		return
	}

	if err := h.productService.DeleteImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err, "product_image")
		return
	}

	utils.SuccessResponse(c, gin.H{"details": i18n.T(lang, i18n.KeyProductImageDeleted)})
}

// POST /api/products/:id/reviews
func (h *ProductHandler) SaveReview(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id", "product")
	if !ok {
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	review, err := h.reviewService.SaveReview(c.Request.Context(), productID, actor.UserID, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"details": i18n.T(lang, i18n.KeyReviewSaved),
		"review":  review,
	})
}

// DELETE /api/products/:id/reviews
func (h *ProductHandler) DeleteReview(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id", "product")
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(c.Request.Context(), productID, actor.UserID); err != nil {
		respondError(c, err, "review")
		return
	}

	utils.SuccessResponse(c, gin.H{"details": i18n.T(lang, i18n.KeyReviewDeleted)})
}
