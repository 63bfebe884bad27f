package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/redisclient"
	"ecommerce-api/internal/security"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	productPageSize     = 10
	highlightLimit      = 8
	aiCandidateLimit    = 100
	aiCacheTTL          = 10 * time.Minute
	productImageWidth   = 1000
	aiSearchMsgNone     = "No products found matching the given prompt."
	aiSearchMsgRanked   = "Products fetched successfully by AI"
	aiSearchMsgFallback = "AI is unavailable right now, returning basic filtered products"
)

// CatalogService handles products, reviews and search
type CatalogService struct {
	store        CatalogStore
	images       ImageStore
	ranker       ProductRanker
	cache        Cache
	currencyRate decimal.Decimal
	logger       *zap.Logger
}

// NewCatalogService creates a new catalog service. Submitted prices are
// divided by currencyRate before they are stored.
func NewCatalogService(store CatalogStore, images ImageStore, ranker ProductRanker, cache Cache, currencyRate float64) *CatalogService {
	return &CatalogService{
		store:        store,
		images:       images,
		ranker:       ranker,
		cache:        cache,
		currencyRate: decimal.NewFromFloat(currencyRate),
		logger:       util.GetLogger(),
	}
}

// ProductForm is the admin product form as submitted
type ProductForm struct {
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
	Price       string `form:"price" json:"price"`
	Category    string `form:"category" json:"category"`
	Stock       string `form:"stock" json:"stock"`
}

func (s *CatalogService) parseProductForm(form ProductForm) (store.ProductInput, error) {
	in := store.ProductInput{
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		Category:    strings.TrimSpace(form.Category),
	}
	if in.Name == "" || in.Description == "" || strings.TrimSpace(form.Price) == "" ||
		in.Category == "" || strings.TrimSpace(form.Stock) == "" {
		return in, apperr.Validation("Please provide all required fields")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(form.Price))
	if err != nil || price.IsNegative() {
		return in, apperr.Validation("Price must be a non-negative number")
	}
	stock, err := strconv.Atoi(strings.TrimSpace(form.Stock))
	if err != nil || stock < 0 {
		return in, apperr.Validation("Stock must be a non-negative integer")
	}

	in.Price = price.DivRound(s.currencyRate, 2)
	in.Stock = stock
	return in, nil
}

// CreateProduct stores a product and its uploaded images
func (s *CatalogService) CreateProduct(ctx context.Context, admin *models.User, form ProductForm, files []io.Reader) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	in, err := s.parseProductForm(form)
	if err != nil {
		return nil, err
	}

	in.Images = models.Images{}
	for _, f := range files {
		img, err := s.images.Upload(ctx, f, provider.ProductImageFolder, productImageWidth)
		if err != nil {
			s.destroyImages(ctx, in.Images)
			return nil, apperr.Upstream(err, "Failed to upload product image")
		}
		in.Images = append(in.Images, img)
	}
	in.CreatedBy = &admin.ID

	product, err := s.store.CreateProduct(ctx, in)
	if err != nil {
		s.destroyImages(ctx, in.Images)
		return nil, util.RecordError(span, fmt.Errorf("failed to create product: %w", err))
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	return product, nil
}

// ListProductsQuery is the raw listing query string
type ListProductsQuery struct {
	Availability string `form:"availability"`
	Price        string `form:"price"`
	Category     string `form:"category"`
	Ratings      string `form:"ratings"`
	Search       string `form:"search"`
	Page         int    `form:"page"`
}

// ProductPage is one listing page plus the storefront highlights
type ProductPage struct {
	Products         []models.ProductListing `json:"products"`
	TotalProducts    int64                   `json:"totalProducts"`
	NewProducts      []models.ProductListing `json:"newProducts"`
	TopRatedProducts []models.ProductListing `json:"topRatedProducts"`
}

func parseProductFilter(q ListProductsQuery) store.ProductFilter {
	f := store.ProductFilter{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
	}
	switch q.Availability {
	case store.AvailabilityInStock, store.AvailabilityLimited, store.AvailabilityOutOfStock:
		f.Availability = q.Availability
	}
	if lo, hi, ok := strings.Cut(q.Price, "-"); ok {
		minPrice, errMin := decimal.NewFromString(strings.TrimSpace(lo))
		maxPrice, errMax := decimal.NewFromString(strings.TrimSpace(hi))
		if errMin == nil && errMax == nil {
			f.MinPrice, f.MaxPrice = &minPrice, &maxPrice
		}
	}
	if r, err := decimal.NewFromString(strings.TrimSpace(q.Ratings)); err == nil {
		f.MinRatings = &r
	}
	return f
}

// ListProducts returns a filtered page of products
func (s *CatalogService) ListProducts(ctx context.Context, q ListProductsQuery) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	page := q.Page
	if page < 1 {
		page = 1
	}
	span.SetAttributes(attribute.Int("page", page))

	products, total, err := s.store.ListProducts(ctx, parseProductFilter(q), productPageSize, (page-1)*productPageSize)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list products: %w", err))
	}
	newest, err := s.store.NewProducts(ctx, highlightLimit)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list new products: %w", err))
	}
	topRated, err := s.store.TopRatedProducts(ctx, highlightLimit)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list top rated products: %w", err))
	}

	return &ProductPage{
		Products:         products,
		TotalProducts:    total,
		NewProducts:      newest,
		TopRatedProducts: topRated,
	}, nil
}

// GetProduct returns a product with its reviews
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	product, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to get product: %w", err))
	}
	reviews, err := s.store.GetProductReviews(ctx, id)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to get reviews: %w", err))
	}
	return &models.ProductDetail{Product: *product, Reviews: reviews}, nil
}

// UpdateProduct replaces the scalar fields of a product
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, form ProductForm) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	in, err := s.parseProductForm(form)
	if err != nil {
		return nil, err
	}
	product, err := s.store.UpdateProduct(ctx, id, in)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to update product: %w", err))
	}
	return product, nil
}

// DeleteProduct removes a product, then its images
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct")
	defer span.End()

	product, err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Product not found")
	}
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to delete product: %w", err))
	}

	s.destroyImages(ctx, product.Images)
	return nil
}

// PostReviewRequest is the review form
type PostReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// PostReview creates or replaces the caller's review of a purchased product
func (s *CatalogService) PostReview(ctx context.Context, user *models.User, productID uuid.UUID, req PostReviewRequest) (*models.Review, *models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.PostReview",
		attribute.String("product_id", productID.String()))
	defer span.End()

	comment := strings.TrimSpace(req.Comment)
	if req.Rating == 0 || comment == "" {
		return nil, nil, apperr.Validation("Please provide all required fields")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, nil, apperr.Validation("Rating must be between 1 and 5")
	}

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.NotFound("Product not found")
		}
		return nil, nil, util.RecordError(span, fmt.Errorf("failed to get product: %w", err))
	}

	purchased, err := s.store.HasPaidPurchase(ctx, user.ID, productID)
	if err != nil {
		return nil, nil, util.RecordError(span, fmt.Errorf("failed to check purchase: %w", err))
	}
	if !purchased {
		return nil, nil, apperr.Forbidden("You can only review products you have purchased.")
	}

	review, product, err := s.store.UpsertReview(ctx, productID, user.ID, req.Rating, comment)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, nil, util.RecordError(span, fmt.Errorf("failed to save review: %w", err))
	}
	return review, product, nil
}

// DeleteReview removes the caller's review and recomputes the product rating
func (s *CatalogService) DeleteReview(ctx context.Context, user *models.User, productID uuid.UUID) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteReview")
	defer span.End()

	product, err := s.store.DeleteReview(ctx, productID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Review not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to delete review: %w", err))
	}
	return product, nil
}

// AISearchResult is the outcome of a free-text product search
type AISearchResult struct {
	Products []models.Product
	Message  string
	AIError  string
}

// AISearch pre-filters products by prompt keywords and lets the ranker order
// them. When the ranker fails the pre-filtered list is returned as is.
func (s *CatalogService) AISearch(ctx context.Context, prompt string) (*AISearchResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AISearch")
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.Validation("Please provide a prompt")
	}

	keywords := ExtractKeywords(prompt)
	if len(keywords) == 0 {
		return &AISearchResult{Products: []models.Product{}, Message: aiSearchMsgNone}, nil
	}

	cacheKey := "ai-search:" + security.Digest(strings.ToLower(prompt))
	if s.cache != nil {
		var cached []models.Product
		err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			return &AISearchResult{Products: cached, Message: aiSearchMsgRanked}, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			s.logger.Warn("AI search cache read failed", zap.Error(err))
		}
	}

	candidates, err := s.store.SearchProductsByKeywords(ctx, likePatterns(keywords), aiCandidateLimit)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to search products: %w", err))
	}
	if len(candidates) == 0 {
		return &AISearchResult{Products: []models.Product{}, Message: aiSearchMsgNone}, nil
	}

	ranked, err := s.ranker.Rank(ctx, prompt, candidates)
	if err != nil {
		util.AIFallbacksTotal.Inc()
		s.logger.Warn("AI ranking failed, returning keyword matches",
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
		return &AISearchResult{Products: candidates, Message: aiSearchMsgFallback, AIError: err.Error()}, nil
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, ranked, aiCacheTTL); err != nil {
			s.logger.Warn("AI search cache write failed", zap.Error(err))
		}
	}
	return &AISearchResult{Products: ranked, Message: aiSearchMsgRanked}, nil
}

func (s *CatalogService) destroyImages(ctx context.Context, images models.Images) {
	for _, img := range images {
		if err := s.images.Destroy(ctx, img.PublicID); err != nil {
			s.logger.Error("Failed to destroy image",
				zap.String("public_id", img.PublicID),
				zap.Error(err))
		}
	}
}
