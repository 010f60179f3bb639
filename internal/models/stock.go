package models

import (
	"fmt"
	"time"
)

// ActorKind identifies who performed a stock change.
type ActorKind string

const (
	ActorAdmin    ActorKind = "admin"
	ActorSystem   ActorKind = "system"
	ActorCustomer ActorKind = "customer"
)

// Actor attributes a ledger entry or an audit row to an admin, a customer or the system.
// Stored embedded with the actor_ column prefix.
type Actor struct {
	Kind ActorKind `gorm:"size:20;not null" json:"kind"`
	ID   uint      `gorm:"not null;default:0" json:"id"`
}

// SystemActor is used for scheduled jobs and internal corrections.
func SystemActor() Actor { return Actor{Kind: ActorSystem} }

// AdminActor returns the actor for the given admin id.
func AdminActor(id uint) Actor { return Actor{Kind: ActorAdmin, ID: id} }

// Valid reports whether the actor kind is known. Admins and customers need an id.
func (a Actor) Valid() bool {
	switch a.Kind {
	case ActorSystem:
		return true
	case ActorAdmin, ActorCustomer:
		return a.ID > 0
	}
	return false
}

func (a Actor) String() string {
	if a.Kind == ActorSystem && a.ID == 0 {
		return string(ActorSystem)
	}
	return fmt.Sprintf("%s#%d", a.Kind, a.ID)
}

// StockAccount holds the current quantity of one product.
// It is only written by the stock service, always together with a StockMovement.
type StockAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProductID uint      `gorm:"uniqueIndex;not null" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int       `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
}

// StockMovement is an append-only ledger entry. Rows are never updated or deleted.
type StockMovement struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	ProductID uint     `gorm:"index:idx_movement_product_created,priority:1;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`
	// Delta is positive for increases and negative for decreases.
	Delta        int       `gorm:"not null" json:"delta"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	Actor        Actor     `gorm:"embedded;embeddedPrefix:actor_" json:"actor"`
	Note         string    `gorm:"size:500" json:"note"`
	CreatedAt    time.Time `gorm:"index:idx_movement_product_created,priority:2;not null" json:"created_at"`
}

// IsIncrease reports whether the movement added stock.
func (m *StockMovement) IsIncrease() bool { return m.Delta > 0 }
