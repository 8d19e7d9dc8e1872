package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Store is the subset of queries the product service needs.
type Store interface {
	CreateProduct(ctx context.Context, arg store.ProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, id int64, arg store.ProductParams) (store.Product, error)
	GetProduct(ctx context.Context, id int64) (store.Product, error)
	ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, error)
	CountProducts(ctx context.Context, activeOnly bool) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)
}

// Service manages the product catalogue used to prefill invoice lines.
type Service struct {
	Store Store
}

// Input holds writable product fields; nil keeps the stored value on update.
type Input struct {
	Name        *string       `json:"name" validate:"omitempty,max=200"`
	Description *string       `json:"description" validate:"omitempty,max=2000"`
	UnitPrice   *money.Amount `json:"unit_price"`
	Active      *bool         `json:"active"`
}

// Create stores a new, active-by-default product.
func (s *Service) Create(ctx context.Context, in Input) (store.Product, error) {
	params := store.ProductParams{Active: true}
	if err := merge(&params, in); err != nil {
		return store.Product{}, err
	}
	p, err := s.Store.CreateProduct(ctx, params)
	if err != nil {
		return store.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies the present fields of in.
func (s *Service) Update(ctx context.Context, id int64, in Input) (store.Product, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return store.Product{}, err
	}
	params := store.ProductParams{Name: cur.Name, Description: cur.Description, UnitPrice: cur.UnitPrice, Active: cur.Active}
	if err := merge(&params, in); err != nil {
		return store.Product{}, err
	}
	p, err := s.Store.UpdateProduct(ctx, id, params)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Product{}, common.NotFound("product")
		}
		return store.Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id int64) (store.Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Product{}, common.NotFound("product")
		}
		return store.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns a page of products and the total count.
func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]store.Product, int64, error) {
	items, err := s.Store.ListProducts(ctx, store.ListProductsParams{ActiveOnly: activeOnly, Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	total, err := s.Store.CountProducts(ctx, activeOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	return items, total, nil
}

// Delete removes a product. Invoice lines keep their copied description and
// price; their product reference is cleared by the database.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.Store.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return common.NotFound("product")
	}
	return nil
}

func merge(p *store.ProductParams, in Input) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if p.Name == "" {
		return common.Validation("name is required")
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			p.Description = nil
		} else {
			p.Description = &d
		}
	}
	if in.UnitPrice != nil {
		price := in.UnitPrice.Round2()
		if price.IsNegative() {
			return common.Validation("unit_price must not be negative")
		}
		p.UnitPrice = price
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	return nil
}
