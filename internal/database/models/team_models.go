package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"

	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
)

type Team struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TeamName  string `gorm:"size:255;not null;uniqueIndex"`
	OwnerID   string `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Memberships []TeamMembership `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type TeamMembership struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TeamID    string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_team_user"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_team_user"`
	Role      string `gorm:"size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *TeamMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type JoinRequest struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TeamID    string `gorm:"type:uuid;not null;index"`
	UserID    string `gorm:"type:uuid;not null;index"`
	Status    string `gorm:"size:20;not null;default:'pending'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *JoinRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
