package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Admin is a back-office account. Active admins receive low-stock alerts.
type Admin struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name      string         `gorm:"size:255" json:"name"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Active    bool           `gorm:"not null" json:"active"`
}

// Customer owns orders.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
}

// NotificationTypeLowStock tags in-app low-stock alerts.
const NotificationTypeLowStock = "low_stock"

// Notification is an in-app message addressed to one admin.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	AdminID   uint           `gorm:"index;not null" json:"admin_id"`
	Admin     *Admin         `gorm:"foreignKey:AdminID" json:"-"`
	Type      string         `gorm:"size:50;not null;index" json:"type"`
	Title     string         `gorm:"size:255" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Data      datatypes.JSON `json:"data,omitempty"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// AuditLog records workflow changes that are not part of the stock ledger.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey"`
	Actor      Actor     `gorm:"embedded;embeddedPrefix:actor_"`
	EntityType string    `gorm:"size:50;index:idx_audit_entity,priority:1"` // e.g. "order"
	EntityID   uint      `gorm:"index:idx_audit_entity,priority:2"`
	Action     string    `gorm:"size:50"` // e.g. "transition"
	Field      string    `gorm:"size:50"`
	OldValue   string    `gorm:"type:text"`
	NewValue   string    `gorm:"type:text"`
	CreatedAt  time.Time
}
