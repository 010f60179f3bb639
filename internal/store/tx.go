package store

import (
	"errors"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is the transactional repository handed to Store.Transaction callbacks.
type Tx struct {
	db      *gorm.DB
	locking bool
}

// forUpdate adds a row lock where the dialect supports it. sqlite serialises
// writers on the database lock instead.
func (t *Tx) forUpdate() *gorm.DB {
	if t.locking {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

// Product loads a live (not soft-deleted) product.
func (t *Tx) Product(id uint) (models.Product, error) {
	var p models.Product
	if err := t.db.First(&p, id).Error; err != nil {
		return p, Classify(err)
	}
	return p, nil
}

// CreateProduct inserts a catalog entry.
func (t *Tx) CreateProduct(p *models.Product) error {
	return Classify(t.db.Omit("Category", "Stock").Create(p).Error)
}

// SaveProduct updates every catalog column of p.
func (t *Tx) SaveProduct(p *models.Product) error {
	return Classify(t.db.Omit("Category", "Stock").Save(p).Error)
}

// Category loads one category.
func (t *Tx) Category(id uint) (models.Category, error) {
	var c models.Category
	if err := t.db.First(&c, id).Error; err != nil {
		return c, Classify(err)
	}
	return c, nil
}

// LockCategory loads a live category with a row lock.
func (t *Tx) LockCategory(id uint) (models.Category, error) {
	var c models.Category
	if err := t.forUpdate().First(&c, id).Error; err != nil {
		return c, Classify(err)
	}
	return c, nil
}

// SaveCategory updates the name and slug of c.
func (t *Tx) SaveCategory(c *models.Category) error {
	return Classify(t.db.Model(c).Select("name", "slug", "updated_at").Updates(c).Error)
}

// CategoryProductCount counts the live products of a category.
func (t *Tx) CategoryProductCount(id uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.Product{}).Where("category_id = ?", id).Count(&n).Error
	return n, Classify(err)
}

// DeleteCategory soft-deletes a category.
func (t *Tx) DeleteCategory(id uint) error {
	return Classify(t.db.Delete(&models.Category{}, id).Error)
}

// LockAccount reads the stock account of a product with a row lock.
// A nil account with a nil error means the product has no account yet.
func (t *Tx) LockAccount(productID uint) (*models.StockAccount, error) {
	var acct models.StockAccount
	err := t.forUpdate().Where("product_id = ?", productID).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify(err)
	}
	return &acct, nil
}

// EnsureAccount creates an empty account when missing and returns it locked.
func (t *Tx) EnsureAccount(productID uint) (*models.StockAccount, error) {
	seed := models.StockAccount{ProductID: productID}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoNothing: true,
	}).Create(&seed).Error
	if err != nil {
		return nil, Classify(err)
	}
	acct, err := t.LockAccount(productID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, Classify(gorm.ErrRecordNotFound)
	}
	return acct, nil
}

// SetQuantity stores a new quantity on a locked account.
func (t *Tx) SetQuantity(acct *models.StockAccount, quantity int) error {
	if err := t.db.Model(acct).Update("quantity", quantity).Error; err != nil {
		return Classify(err)
	}
	acct.Quantity = quantity
	return nil
}

// AppendMovement writes a ledger entry. CreatedAt is assigned by gorm.
func (t *Tx) AppendMovement(m *models.StockMovement) error {
	return Classify(t.db.Create(m).Error)
}

// Customer loads a customer.
func (t *Tx) Customer(id uint) (models.Customer, error) {
	var c models.Customer
	if err := t.db.First(&c, id).Error; err != nil {
		return c, Classify(err)
	}
	return c, nil
}

// CreateOrder inserts the order header.
func (t *Tx) CreateOrder(o *models.Order) error {
	return Classify(t.db.Omit("Items", "Customer").Create(o).Error)
}

// CreateOrderItem inserts one order line.
func (t *Tx) CreateOrderItem(it *models.OrderItem) error {
	return Classify(t.db.Omit("Product").Create(it).Error)
}

// SetOrderTotal stores the computed order total.
func (t *Tx) SetOrderTotal(o *models.Order, total decimal.Decimal) error {
	if err := t.db.Model(o).Update("total_amount", total).Error; err != nil {
		return Classify(err)
	}
	o.TotalAmount = total
	return nil
}

// LockOrder loads an order with a row lock.
func (t *Tx) LockOrder(id uint) (models.Order, error) {
	var o models.Order
	if err := t.forUpdate().First(&o, id).Error; err != nil {
		return o, Classify(err)
	}
	return o, nil
}

// SetOrderStatus stores a new workflow status.
func (t *Tx) SetOrderStatus(o *models.Order, status models.OrderStatus) error {
	if err := t.db.Model(o).Update("status", status).Error; err != nil {
		return Classify(err)
	}
	o.Status = status
	return nil
}

// SetOrderNotes replaces the free-text notes of an order.
func (t *Tx) SetOrderNotes(o *models.Order, notes string) error {
	if err := t.db.Model(o).Update("notes", notes).Error; err != nil {
		return Classify(err)
	}
	o.Notes = notes
	return nil
}

// AppendAudit writes an audit row.
func (t *Tx) AppendAudit(a *models.AuditLog) error {
	return Classify(t.db.Create(a).Error)
}
