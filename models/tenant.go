package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/google/uuid"
)

type Tenant struct {
	ID           string    `gorm:"primary_key;size:64" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email        string    `gorm:"size:255" json:"email"`
	Timezone     string    `gorm:"size:64;default:'Asia/Karachi'" json:"timezone"`
	CurrencyCode string    `gorm:"size:8;default:'PKR'" json:"currency_code"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTenant struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email"`
	Timezone     string `json:"timezone"`
	CurrencyCode string `json:"currency_code"`
}

// CreateTenant provisions a tenant with its chart of accounts and a primary
// warehouse. A tenant without the system accounts cannot post anything.
func CreateTenant(ctx context.Context, input *NewTenant) (*Tenant, error) {
	if input.Name == "" {
		return nil, errors.New("tenant name is required")
	}
	tenant := Tenant{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		Timezone:     input.Timezone,
		CurrencyCode: input.CurrencyCode,
	}
	if tenant.Timezone == "" {
		tenant.Timezone = "Asia/Karachi"
	}
	if tenant.CurrencyCode == "" {
		tenant.CurrencyCode = "PKR"
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&tenant).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := seedSystemAccounts(ctx, tx, tenant.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&Warehouse{
		TenantId: tenant.ID,
		Name:     "Primary Warehouse",
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func GetTenantById(ctx context.Context, tenantId string) (*Tenant, error) {
	var tenant Tenant
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", tenantId).First(&tenant).Error; err != nil {
		return nil, errors.New("tenant not found")
	}
	return &tenant, nil
}
