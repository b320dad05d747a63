package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LaboratoryProfile carries the public details of a laboratory account. Its ID
// is distinct from the owning user's ID; admins may reference either.
type LaboratoryProfile struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	LaboratoryName string    `gorm:"column:laboratory_name;not null"`
	Address        string    `gorm:"column:address;not null;default:''"`
	City           string    `gorm:"column:city;not null;default:''"`
	Phone          *string   `gorm:"column:phone"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *LaboratoryProfile) BeforeCreate(*gorm.DB) error { return ensureID(&p.ID) }
