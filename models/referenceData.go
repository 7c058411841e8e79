package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Item struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Type      ItemType  `gorm:"size:16;not null;default:'INPUT'" json:"type"`
	Unit      string    `gorm:"size:32" json:"unit"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Machine struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TenantId   string          `gorm:"size:64;index;not null" json:"tenant_id"`
	Name       string          `gorm:"size:255;not null" json:"name" binding:"required"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Name string `json:"name" binding:"required"`
}

type NewItem struct {
	Name string   `json:"name" binding:"required"`
	Type ItemType `json:"type"`
	Unit string   `json:"unit"`
}

type NewMachine struct {
	Name       string          `json:"name" binding:"required"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateUnique[Warehouse](ctx, tenantId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	warehouse := Warehouse{TenantId: tenantId, Name: input.Name}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateUnique[Item](ctx, tenantId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	itemType := input.Type
	if itemType == "" {
		itemType = ItemTypeInput
	}
	if itemType != ItemTypeInput && itemType != ItemTypeProduce {
		return nil, errors.New("invalid item type")
	}
	item := Item{TenantId: tenantId, Name: input.Name, Type: itemType, Unit: input.Unit}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func CreateMachine(ctx context.Context, input *NewMachine) (*Machine, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateUnique[Machine](ctx, tenantId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.HourlyRate.IsNegative() {
		return nil, errors.New("hourly rate cannot be negative")
	}
	machine := Machine{TenantId: tenantId, Name: input.Name, HourlyRate: input.HourlyRate}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&machine).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}
