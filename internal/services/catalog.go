package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductPageSize is the number of products per listing page.
const ProductPageSize = 15

// ProductInput carries the writable catalog fields. Nil pointers leave the
// field untouched on update. Quantity, when set, becomes the absolute stock
// level through a ledger entry.
type ProductInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	SKU         *string          `json:"sku"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *uint            `json:"category_id"`
	Active      *bool            `json:"active"`
	Quantity    *int             `json:"quantity"`
}

func (in ProductInput) validate(create bool) error {
	if create {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidProduct)
		}
		if in.SKU == nil || strings.TrimSpace(*in.SKU) == "" {
			return fmt.Errorf("%w: sku is required", ErrInvalidProduct)
		}
		if in.Price == nil {
			return fmt.Errorf("%w: price is required", ErrInvalidProduct)
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidProduct)
	}
	if in.SKU != nil && strings.TrimSpace(*in.SKU) == "" {
		return fmt.Errorf("%w: sku must not be blank", ErrInvalidProduct)
	}
	if in.Name != nil && hasControl(*in.Name) {
		return fmt.Errorf("%w: name must be a single line", ErrInvalidProduct)
	}
	if in.SKU != nil && hasControl(*in.SKU) {
		return fmt.Errorf("%w: sku must be a single line", ErrInvalidProduct)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

func hasControl(s string) bool { return strings.IndexFunc(s, unicode.IsControl) >= 0 }

func (in ProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		p.Slug = models.Slugify(p.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Price != nil {
		p.Price = in.Price.Round(2)
	}
	if in.CategoryID != nil {
		if *in.CategoryID == 0 {
			p.CategoryID = nil
		} else {
			id := *in.CategoryID
			p.CategoryID = &id
		}
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
}

// CatalogService manages products and categories. Stock changes made while
// editing a product go through the stock service so they reach the ledger.
type CatalogService struct {
	store   *store.Store
	stock   *StockService
	monitor *LowStockMonitor
	log     *zap.Logger
}

// NewCatalogService wires the catalog onto the stock service.
func NewCatalogService(s *store.Store, stock *StockService, monitor *LowStockMonitor, log *zap.Logger) *CatalogService {
	return &CatalogService{store: s, stock: stock, monitor: monitor, log: log}
}

// CreateProduct inserts a product. New products are active unless the input
// says otherwise. An initial quantity is recorded as "Initial stock".
func (c *CatalogService) CreateProduct(ctx context.Context, in ProductInput, actor models.Actor) (models.Product, error) {
	if err := in.validate(true); err != nil {
		return models.Product{}, err
	}
	if !actor.Valid() {
		return models.Product{}, ErrInvalidActor
	}
	p := models.Product{Active: true}
	in.apply(&p)
	res, err := c.save(ctx, &p, in, actor, "Initial stock", true)
	if err != nil {
		return models.Product{}, err
	}
	c.log.Info("product created", zap.Uint("product_id", p.ID), zap.String("sku", p.SKU))
	return c.reload(ctx, p, res)
}

// UpdateProduct applies the set fields of in to a live product. A quantity
// is recorded as "Stock updated via product edit".
func (c *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput, actor models.Actor) (models.Product, error) {
	if err := in.validate(false); err != nil {
		return models.Product{}, err
	}
	if !actor.Valid() {
		return models.Product{}, ErrInvalidActor
	}
	p := models.Product{ID: id}
	res, err := c.save(ctx, &p, in, actor, "Stock updated via product edit", false)
	if err != nil {
		return models.Product{}, err
	}
	return c.reload(ctx, p, res)
}

// save persists p and its optional stock level in one transaction.
func (c *CatalogService) save(ctx context.Context, p *models.Product, in ProductInput, actor models.Actor, note string, create bool) (*Result, error) {
	var res *Result
	err := c.store.Transaction(ctx, func(tx *store.Tx) error {
		if in.CategoryID != nil && *in.CategoryID != 0 {
			if _, err := tx.Category(*in.CategoryID); err != nil {
				return notFound(err, ErrCategoryNotFound, *in.CategoryID)
			}
		}
		if create {
			if err := tx.CreateProduct(p); err != nil {
				return conflict(err, ErrDuplicateSKU)
			}
		} else {
			current, err := tx.Product(p.ID)
			if err != nil {
				return notFound(err, ErrProductNotFound, p.ID)
			}
			*p = current
			in.apply(p)
			if err := tx.SaveProduct(p); err != nil {
				return conflict(err, ErrDuplicateSKU)
			}
		}
		if in.Quantity == nil {
			return nil
		}
		r, err := c.stock.setAbsoluteTx(tx, *p, *in.Quantity, actor, note)
		if err != nil {
			return err
		}
		res = &r
		return nil
	})
	return res, err
}

// reload returns the stored product and runs the low-stock check for a
// committed quantity change.
func (c *CatalogService) reload(ctx context.Context, p models.Product, res *Result) (models.Product, error) {
	if res != nil {
		c.monitor.CheckOne(ctx, p, res.Quantity)
	}
	out, err := c.store.Product(ctx, p.ID)
	if err != nil {
		return p, notFound(err, ErrProductNotFound, p.ID)
	}
	return out, nil
}

// DeleteProduct soft-deletes a product. Its stock account and ledger remain.
func (c *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return notFound(err, ErrProductNotFound, id)
	}
	c.log.Info("product deleted", zap.Uint("product_id", id))
	return nil
}

// Product loads a live product with its category and stock.
func (c *CatalogService) Product(ctx context.Context, id uint) (models.Product, error) {
	p, err := c.store.Product(ctx, id)
	if err != nil {
		return p, notFound(err, ErrProductNotFound, id)
	}
	return p, nil
}

// Products lists live products.
func (c *CatalogService) Products(ctx context.Context, page int) (store.Page[models.Product], error) {
	return c.store.Products(ctx, nil, page, ProductPageSize)
}

// CategoryPageSize is the number of categories per listing page.
const CategoryPageSize = 15

// Categories lists categories with their product counts.
func (c *CatalogService) Categories(ctx context.Context, page int) (store.Page[models.Category], error) {
	return c.store.Categories(ctx, page, CategoryPageSize)
}

// Category loads one category with its product count.
func (c *CatalogService) Category(ctx context.Context, id uint) (models.Category, error) {
	cat, err := c.store.Category(ctx, id)
	if err != nil {
		return cat, notFound(err, ErrCategoryNotFound, id)
	}
	return cat, nil
}

func categoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	if hasControl(name) {
		return "", fmt.Errorf("%w: name must be a single line", ErrInvalidCategory)
	}
	return name, nil
}

// CreateCategory inserts a category with a unique name.
func (c *CatalogService) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return models.Category{}, err
	}
	cat := models.Category{Name: name, Slug: models.Slugify(name)}
	if err := c.store.CreateCategory(ctx, &cat); err != nil {
		return models.Category{}, conflict(err, ErrDuplicateCategory)
	}
	return cat, nil
}

// UpdateCategory renames a category. Names stay unique.
func (c *CatalogService) UpdateCategory(ctx context.Context, id uint, name string) (models.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return models.Category{}, err
	}
	err = c.store.Transaction(ctx, func(tx *store.Tx) error {
		cat, err := tx.LockCategory(id)
		if err != nil {
			return notFound(err, ErrCategoryNotFound, id)
		}
		cat.Name, cat.Slug = name, models.Slugify(name)
		return conflict(tx.SaveCategory(&cat), ErrDuplicateCategory)
	})
	if err != nil {
		return models.Category{}, err
	}
	return c.Category(ctx, id)
}

// DeleteCategory soft-deletes a category that no live product references.
func (c *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	err := c.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.LockCategory(id); err != nil {
			return notFound(err, ErrCategoryNotFound, id)
		}
		n, err := tx.CategoryProductCount(id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d products attached", ErrCategoryInUse, n)
		}
		return tx.DeleteCategory(id)
	})
	if err != nil {
		return err
	}
	c.log.Info("category deleted", zap.Uint("category_id", id))
	return nil
}

// CategoryProducts lists the live products of one category.
func (c *CatalogService) CategoryProducts(ctx context.Context, id uint, page int) (models.Category, store.Page[models.Product], error) {
	cat, err := c.store.Category(ctx, id)
	if err != nil {
		return cat, store.Page[models.Product]{}, notFound(err, ErrCategoryNotFound, id)
	}
	products, err := c.store.Products(ctx, &id, page, ProductPageSize)
	return cat, products, err
}
