package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
)

// Party is any counterparty: landlord, hari, labourer, supplier or customer.
// Roles are not exclusive; the same party can buy produce and supply inputs.
type Party struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Party) GetId() int { return p.ID }

type NewParty struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (input *NewParty) validate(ctx context.Context, tenantId string, id int) error {
	if err := utils.ValidateUnique[Party](ctx, tenantId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateParty(ctx context.Context, input *NewParty) (*Party, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	party := Party{
		TenantId: tenantId,
		Name:     input.Name,
		Phone:    input.Phone,
		Address:  input.Address,
		Notes:    input.Notes,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func GetParty(ctx context.Context, id int) (*Party, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Party](ctx, tenantId, id)
}
