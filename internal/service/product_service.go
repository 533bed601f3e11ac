package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductService handles the product catalog. Prices are stored as cost plus
// margin; the selling price is always derived, never written.
type ProductService struct {
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(productRepo *repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		logger:      logger,
	}
}

// Create adds a catalog entry
func (s *ProductService) Create(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductDTO, error) {
	if _, err := SellingPrice(req.HPP, req.MarginPct); err != nil {
		return nil, err
	}

	if req.Code != "" {
		existing, err := s.productRepo.GetByCode(ctx, req.Code)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check product code: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: product code %q already exists", ErrConflict, req.Code)
		}
	}

	product := &domain.Product{
		Name:        req.Name,
		Code:        req.Code,
		Category:    req.Category,
		Description: req.Description,
		HPP:         req.HPP,
		MarginPct:   req.MarginPct,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created",
		zap.String("productID", product.ID.String()),
		zap.String("name", product.Name))

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

// GetByID returns a single product
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductDTO, error) {
	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

// List returns products with pagination and filtering
func (s *ProductService) List(ctx context.Context, page, pageSize int, filters *repository.ProductFilters) ([]domain.ProductDTO, int64, error) {
	products, total, err := s.productRepo.List(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	dtos := make([]domain.ProductDTO, 0, len(products))
	for i := range products {
		dtos = append(dtos, mapper.ToProductDTO(&products[i]))
	}
	return dtos, total, nil
}

// ListActive returns the active catalog without pagination, for pickers
func (s *ProductService) ListActive(ctx context.Context) ([]domain.ProductDTO, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}

	dtos := make([]domain.ProductDTO, 0, len(products))
	for i := range products {
		dtos = append(dtos, mapper.ToProductDTO(&products[i]))
	}
	return dtos, nil
}

// Update updates a catalog entry. Existing deal items keep their snapshotted
// unit price; only new lines see the changed pricing.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProductRequest) (*domain.ProductDTO, error) {
	if _, err := SellingPrice(req.HPP, req.MarginPct); err != nil {
		return nil, err
	}

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Code != "" && req.Code != product.Code {
		existing, err := s.productRepo.GetByCode(ctx, req.Code)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check product code: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: product code %q already exists", ErrConflict, req.Code)
		}
	}

	product.Name = req.Name
	product.Code = req.Code
	product.Category = req.Category
	product.Description = req.Description
	product.HPP = req.HPP
	product.MarginPct = req.MarginPct
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

// Deactivate retires a product from the catalog without breaking the deal
// items and services that reference it
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.ProductDTO, error) {
	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	product.IsActive = false
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to deactivate product: %w", err)
	}

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

func (s *ProductService) getProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}
