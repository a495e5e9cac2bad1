package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmynk/storefront/internal/api"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/models"
)

// ProductService covers the catalog endpoints.
type ProductService struct {
	cache     *cache.Cache
	keepAlive KeepAlive
}

// NewProductService creates a ProductService over c.
func NewProductService(c *cache.Cache, keepAlive KeepAlive) *ProductService {
	return &ProductService{cache: c, keepAlive: keepAlive.orDefault()}
}

// ProductsRequest is the cache request for one page of the listing.
func (s *ProductService) ProductsRequest(keyword string, page int) cache.Request {
	if page < 1 {
		page = 1
	}
	return cache.Request{
		Endpoint:  "/products",
		Params:    url.Values{"keyword": {keyword}, "pageNumber": {strconv.Itoa(page)}},
		Tags:      []cache.Tag{cache.TypeTag(TagProduct)},
		KeepAlive: s.keepAlive.Volatile,
	}
}

// GetProducts returns one page of products matching keyword.
func (s *ProductService) GetProducts(ctx context.Context, keyword string, page int) (models.ProductPage, error) {
	slog.Info("GetProducts request received", "keyword", keyword, "page", page)
	return api.Decode[models.ProductPage](s.cache.Query(ctx, s.ProductsRequest(keyword, page)))
}

// TopProductsRequest is the cache request for the top-rated carousel.
func (s *ProductService) TopProductsRequest() cache.Request {
	return cache.Request{
		Endpoint:  "/products/top",
		Tags:      []cache.Tag{cache.TypeTag(TagProduct)},
		KeepAlive: s.keepAlive.Volatile,
	}
}

// GetTopProducts returns the top-rated products.
func (s *ProductService) GetTopProducts(ctx context.Context) ([]models.Product, error) {
	return api.Decode[[]models.Product](s.cache.Query(ctx, s.TopProductsRequest()))
}

// ProductDetailsRequest is the cache request for one product.
func (s *ProductService) ProductDetailsRequest(id string) cache.Request {
	return cache.Request{
		Endpoint:  "/products/" + url.PathEscape(id),
		Tags:      []cache.Tag{cache.IDTag(TagProduct, id)},
		KeepAlive: s.keepAlive.Volatile,
	}
}

// GetProductDetails returns the product with id.
func (s *ProductService) GetProductDetails(ctx context.Context, id string) (models.Product, error) {
	slog.Info("GetProductDetails request received", "product_id", id)
	return api.Decode[models.Product](s.cache.Query(ctx, s.ProductDetailsRequest(id)))
}

// CreateProduct creates a placeholder product to be edited. Admin only.
func (s *ProductService) CreateProduct(ctx context.Context) (models.Product, error) {
	p, err := api.Decode[models.Product](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPost, Endpoint: "/products"},
		cache.TypeTag(TagProduct),
	))
	if err != nil {
		slog.Error("CreateProduct failed", "error", err)
		return p, err
	}
	slog.Info("Product created", "product_id", p.ID)
	return p, nil
}

// UpdateProduct replaces the product's fields. Admin only.
func (s *ProductService) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	updated, err := api.Decode[models.Product](s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodPut, Endpoint: "/products/" + url.PathEscape(p.ID), Body: p},
		cache.TypeTag(TagProduct),
	))
	if err != nil {
		slog.Error("UpdateProduct failed", "product_id", p.ID, "error", err)
		return updated, err
	}
	slog.Info("Product updated", "product_id", updated.ID)
	return updated, nil
}

// DeleteProduct removes the product with id. Admin only.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.cache.Mutate(ctx,
		cache.Call{Method: http.MethodDelete, Endpoint: "/products/" + url.PathEscape(id)},
		cache.TypeTag(TagProduct),
	)
	if err != nil {
		slog.Error("DeleteProduct failed", "product_id", id, "error", err)
		return err
	}
	slog.Info("Product deleted", "product_id", id)
	return nil
}
