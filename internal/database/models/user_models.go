package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	IsActive  bool   `gorm:"default:true"`
	LastLogin *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the descriptive info shown in member and request lists.
// Its ID is the owning user's ID.
type Profile struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	Email          *string `gorm:"size:255"`
	RestaurantName *string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
