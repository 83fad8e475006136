package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Vendor struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	UserID        string  `gorm:"type:uuid;not null;uniqueIndex:idx_vendor_user_name"`
	VendorName    string  `gorm:"size:255;not null;uniqueIndex:idx_vendor_user_name"`
	ContactPerson *string `gorm:"size:100"`
	Phone         *string `gorm:"size:50"`
	Email         *string `gorm:"size:100"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

type InventoryItem struct {
	ID                   string  `gorm:"type:uuid;primaryKey"`
	UserID               string  `gorm:"type:uuid;not null;index"`
	InventoryName        string  `gorm:"size:255;not null"`
	Category             string  `gorm:"size:50"`
	Unit                 string  `gorm:"size:50"`
	CostPerUnit          string  `gorm:"size:50"`
	LastShipmentDate     *string `gorm:"size:50"`
	LastShipmentQuantity *float64
	VendorID             *string `gorm:"type:uuid"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Vendor   *Vendor            `gorm:"foreignKey:VendorID"`
	Quantity *InventoryQuantity `gorm:"foreignKey:InventoryID;constraint:OnDelete:CASCADE"`
}

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InventoryQuantity is one-to-one with its item. CurrentQuantity never goes
// below zero; delta updates clamp at the database level.
type InventoryQuantity struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	InventoryID      string `gorm:"type:uuid;not null;uniqueIndex"`
	UserID           string `gorm:"type:uuid;not null;index"`
	CurrentQuantity  float64
	InventoryMinimum *float64
	InventoryMaximum *float64
	VendorID         *string `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (q *InventoryQuantity) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
