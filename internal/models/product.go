package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products in the catalog.
type Category struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name      string         `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Slug      string         `gorm:"size:255;index" json:"slug"`

	// ProductsCount counts live products. It is filled only by the
	// category listing and detail queries.
	ProductsCount int64 `gorm:"->;-:migration" json:"products_count"`
}

// Product is a catalog entry. Products are soft-deleted so that their
// stock ledger stays readable after removal.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Slug        string         `gorm:"size:255;index" json:"slug"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	// SKU is unique across the catalog, deleted products included.
	SKU        string          `gorm:"column:sku;size:64;uniqueIndex;not null" json:"sku"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CategoryID *uint           `gorm:"index" json:"category_id,omitempty"`
	Category   *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Active     bool            `gorm:"not null" json:"active"`

	// Stock is nil until the first stock operation creates the account.
	Stock *StockAccount `gorm:"foreignKey:ProductID" json:"stock,omitempty"`
}

// IsInStock reports whether at least one unit is available.
func (p *Product) IsInStock() bool {
	return p.Stock != nil && p.Stock.Quantity > 0
}

// AvailableQuantity returns the stock quantity, 0 when no account exists.
func (p *Product) AvailableQuantity() int {
	if p.Stock == nil {
		return 0
	}
	return p.Stock.Quantity
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
