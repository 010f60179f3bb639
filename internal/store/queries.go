package store

import (
	"context"

	"github.com/diewo77/go-stock/internal/models"
	"gorm.io/gorm"
)

func withDeleted(db *gorm.DB) *gorm.DB { return db.Unscoped() }

// ProductWithDeleted loads a product even when it was soft-deleted.
func (s *Store) ProductWithDeleted(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	if err := s.read(ctx).Unscoped().First(&p, id).Error; err != nil {
		return p, Classify(err)
	}
	return p, nil
}

// Product loads a live product with its category and stock account.
func (s *Store) Product(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	if err := s.read(ctx).Preload("Category").Preload("Stock").First(&p, id).Error; err != nil {
		return p, Classify(err)
	}
	return p, nil
}

// Products lists live products, optionally filtered by category.
func (s *Store) Products(ctx context.Context, categoryID *uint, page, perPage int) (Page[models.Product], error) {
	page, offset := normalizePage(page, perPage)
	out := Page[models.Product]{Page: page, PerPage: perPage}
	q := func() *gorm.DB {
		db := s.read(ctx).Model(&models.Product{})
		if categoryID != nil {
			db = db.Where("category_id = ?", *categoryID)
		}
		return db
	}
	if err := q().Count(&out.Total).Error; err != nil {
		return out, Classify(err)
	}
	err := q().Preload("Category").Preload("Stock").
		Order("id ASC").Limit(perPage).Offset(offset).
		Find(&out.Items).Error
	return out, Classify(err)
}

// DeleteProduct soft-deletes a product. Its ledger is kept.
func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	res := s.read(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return Classify(gorm.ErrRecordNotFound)
	}
	return nil
}

// withProductCount selects categories together with their live product count.
func withProductCount(db *gorm.DB) *gorm.DB {
	return db.Select("categories.*, (SELECT COUNT(*) FROM products" +
		" WHERE products.category_id = categories.id AND products.deleted_at IS NULL) AS products_count")
}

// Categories lists categories by name with their product counts.
func (s *Store) Categories(ctx context.Context, page, perPage int) (Page[models.Category], error) {
	page, offset := normalizePage(page, perPage)
	out := Page[models.Category]{Page: page, PerPage: perPage}
	if err := s.read(ctx).Model(&models.Category{}).Count(&out.Total).Error; err != nil {
		return out, Classify(err)
	}
	err := withProductCount(s.read(ctx).Model(&models.Category{})).
		Order("name ASC").Limit(perPage).Offset(offset).
		Find(&out.Items).Error
	return out, Classify(err)
}

// Category loads one category with its product count.
func (s *Store) Category(ctx context.Context, id uint) (models.Category, error) {
	var c models.Category
	if err := withProductCount(s.read(ctx).Model(&models.Category{})).Where("categories.id = ?", id).Take(&c).Error; err != nil {
		return c, Classify(err)
	}
	return c, nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return Classify(s.read(ctx).Create(c).Error)
}

// Account returns the stock account of a product, nil when absent.
func (s *Store) Account(ctx context.Context, productID uint) (*models.StockAccount, error) {
	var acct models.StockAccount
	err := s.read(ctx).Where("product_id = ?", productID).Limit(1).Find(&acct).Error
	if err != nil {
		return nil, Classify(err)
	}
	if acct.ID == 0 {
		return nil, nil
	}
	return &acct, nil
}

// Accounts lists stock accounts with their products.
func (s *Store) Accounts(ctx context.Context, page, perPage int) (Page[models.StockAccount], error) {
	page, offset := normalizePage(page, perPage)
	out := Page[models.StockAccount]{Page: page, PerPage: perPage}
	if err := s.read(ctx).Model(&models.StockAccount{}).Count(&out.Total).Error; err != nil {
		return out, Classify(err)
	}
	err := s.read(ctx).Preload("Product", withDeleted).
		Order("product_id ASC").Limit(perPage).Offset(offset).
		Find(&out.Items).Error
	return out, Classify(err)
}

// LowAccounts returns every account whose quantity is at or below threshold.
func (s *Store) LowAccounts(ctx context.Context, threshold int) ([]models.StockAccount, error) {
	var out []models.StockAccount
	err := s.read(ctx).Preload("Product", withDeleted).
		Where("quantity <= ?", threshold).
		Order("product_id ASC").
		Find(&out).Error
	return out, Classify(err)
}

// Movements returns a page of a product's ledger, newest first.
func (s *Store) Movements(ctx context.Context, productID uint, page, perPage int) (Page[models.StockMovement], error) {
	page, offset := normalizePage(page, perPage)
	out := Page[models.StockMovement]{Page: page, PerPage: perPage}
	if err := s.read(ctx).Model(&models.StockMovement{}).Where("product_id = ?", productID).Count(&out.Total).Error; err != nil {
		return out, Classify(err)
	}
	err := s.read(ctx).Where("product_id = ?", productID).Order("created_at DESC").Order("id DESC").
		Limit(perPage).Offset(offset).
		Find(&out.Items).Error
	return out, Classify(err)
}

// MovementSum returns the sum of all ledger deltas of a product.
func (s *Store) MovementSum(ctx context.Context, productID uint) (int, error) {
	var sum int
	err := s.read(ctx).Model(&models.StockMovement{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, Classify(err)
}

func orderItems(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

// Order loads an order with its items and their products.
func (s *Store) Order(ctx context.Context, id uint) (models.Order, error) {
	var o models.Order
	err := s.read(ctx).
		Preload("Items", orderItems).
		Preload("Items.Product", withDeleted).
		First(&o, id).Error
	if err != nil {
		return o, Classify(err)
	}
	return o, nil
}

// Orders lists orders newest first.
func (s *Store) Orders(ctx context.Context, page, perPage int) (Page[models.Order], error) {
	page, offset := normalizePage(page, perPage)
	out := Page[models.Order]{Page: page, PerPage: perPage}
	if err := s.read(ctx).Model(&models.Order{}).Count(&out.Total).Error; err != nil {
		return out, Classify(err)
	}
	err := s.read(ctx).Preload("Items", orderItems).
		Preload("Items.Product", withDeleted).
		Order("created_at DESC").Order("id DESC").
		Limit(perPage).Offset(offset).
		Find(&out.Items).Error
	return out, Classify(err)
}

// ActiveAdmins returns the admins that receive notifications.
func (s *Store) ActiveAdmins(ctx context.Context) ([]models.Admin, error) {
	var out []models.Admin
	err := s.read(ctx).Where("active = ?", true).Order("id ASC").Find(&out).Error
	return out, Classify(err)
}

// CreateNotifications inserts in-app notifications in one batch.
func (s *Store) CreateNotifications(ctx context.Context, rows []models.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return Classify(s.read(ctx).Omit("Admin").Create(&rows).Error)
}
