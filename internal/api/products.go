package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
)

type aiSearchRequest struct {
	UserPrompt string `json:"userPrompt"`
}

// openUploads opens every file under field; the caller closes them
func openUploads(c *gin.Context, field string) ([]multipart.File, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("Could not read uploaded files")
	}

	files := make([]multipart.File, 0, len(form.File[field]))
	for _, header := range form.File[field] {
		f, err := header.Open()
		if err != nil {
			closeAll(files)
			return nil, apperr.Validation("Could not read uploaded files")
		}
		files = append(files, f)
	}
	return files, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}

func (h *Handler) createProduct(c *gin.Context) {
	var form service.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	files, err := openUploads(c, "images")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeAll(files)

	readers := make([]io.Reader, len(files))
	for i, f := range files {
		readers[i] = f
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), currentUser(c), form, readers)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, struct {
		envelope
		Product *models.Product `json:"product"`
	}{ok("Product created successfully"), product})
}

func (h *Handler) listProducts(c *gin.Context) {
	q := service.ListProductsQuery{
		Availability: c.Query("availability"),
		Price:        c.Query("price"),
		Category:     c.Query("category"),
		Ratings:      c.Query("ratings"),
		Search:       c.Query("search"),
		Page:         pageQuery(c),
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		*service.ProductPage
	}{ok(""), page})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := uuidParam(c, "productId", "product")
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Product *models.ProductDetail `json:"product"`
	}{ok("Product fetched successfully"), product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, err := uuidParam(c, "productId", "product")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var form service.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, form)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Product *models.Product `json:"updatedProduct"`
	}{ok("Product updated successfully"), product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := uuidParam(c, "productId", "product")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok("Product deleted successfully"))
}

func (h *Handler) postReview(c *gin.Context) {
	id, err := uuidParam(c, "productId", "product")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req service.PostReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	review, product, err := h.catalog.PostReview(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Review  *models.Review  `json:"review"`
		Product *models.Product `json:"updatedProduct"`
	}{ok("Review submitted successfully"), review, product})
}

func (h *Handler) deleteReview(c *gin.Context) {
	id, err := uuidParam(c, "productId", "product")
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.catalog.DeleteReview(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Product *models.Product `json:"updatedProduct"`
	}{ok("Review deleted successfully"), product})
}

func (h *Handler) aiSearch(c *gin.Context) {
	var req aiSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	result, err := h.catalog.AISearch(c.Request.Context(), req.UserPrompt)
	if err != nil {
		h.respondError(c, err)
		return
	}

	products := result.Products
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, struct {
		envelope
		Products []models.Product `json:"products"`
		AIError  string           `json:"aiError,omitempty"`
	}{ok(result.Message), products, result.AIError})
}
