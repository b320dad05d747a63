package laboratories

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

// ProfileInput is the editable part of a laboratory profile.
type ProfileInput struct {
	LaboratoryName string  `json:"laboratory_name" validate:"required,max=200"`
	Address        string  `json:"address" validate:"max=500"`
	City           string  `json:"city" validate:"max=120"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// ProfileDTO is the API shape of a laboratory profile.
type ProfileDTO struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	LaboratoryName string    `json:"laboratory_name"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	Phone          *string   `json:"phone,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func FromModel(p *models.LaboratoryProfile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:             p.ID,
		UserID:         p.UserID,
		LaboratoryName: p.LaboratoryName,
		Address:        p.Address,
		City:           p.City,
		Phone:          p.Phone,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (in ProfileInput) toModel(userID uuid.UUID) models.LaboratoryProfile {
	return models.LaboratoryProfile{
		UserID:         userID,
		LaboratoryName: strings.TrimSpace(in.LaboratoryName),
		Address:        strings.TrimSpace(in.Address),
		City:           strings.TrimSpace(in.City),
		Phone:          in.Phone,
	}
}
