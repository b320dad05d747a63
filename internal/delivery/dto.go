package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

// ProfileInput is the editable part of a delivery partner profile.
type ProfileInput struct {
	Address       string  `json:"address" validate:"required,max=500"`
	City          string  `json:"city" validate:"required,max=120"`
	Pincode       string  `json:"pincode" validate:"required,max=12"`
	VehicleNumber *string `json:"vehicle_number,omitempty" validate:"omitempty,max=32"`
}

// ProfileDTO is the API shape of a delivery partner profile.
type ProfileDTO struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	Pincode       string    `json:"pincode"`
	VehicleNumber *string   `json:"vehicle_number,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func FromModel(p *models.DeliveryPartnerProfile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:            p.ID,
		UserID:        p.UserID,
		Address:       p.Address,
		City:          p.City,
		Pincode:       p.Pincode,
		VehicleNumber: p.VehicleNumber,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (in ProfileInput) toModel(userID uuid.UUID) models.DeliveryPartnerProfile {
	return models.DeliveryPartnerProfile{
		UserID:        userID,
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		Pincode:       strings.TrimSpace(in.Pincode),
		VehicleNumber: in.VehicleNumber,
	}
}
