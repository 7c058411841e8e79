package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// CropActivity consumes input stock from a warehouse into a crop cycle
// (sowing seed, spreading fertilizer). Posting issues the stock at moving
// average cost, debits crop WIP and credits inputs inventory.
type CropActivity struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	CropCycleId            int             `gorm:"index;not null" json:"crop_cycle_id" binding:"required"`
	WarehouseId            int             `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	ItemId                 int             `gorm:"index;not null" json:"item_id" binding:"required"`
	ActivityDate           time.Time       `gorm:"not null" json:"activity_date" binding:"required"`
	ActivityType           string          `gorm:"size:255" json:"activity_type"`
	Qty                    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CostClass              CostClass       `gorm:"size:16;not null;default:'SHARED'" json:"cost_class"`
	Notes                  string          `gorm:"type:text" json:"notes"`
	Status                 DocumentStatus  `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int            `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int            `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time      `json:"posting_date"`
	PostedAt               *time.Time      `json:"posted_at"`
	ReversedAt             *time.Time      `json:"reversed_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *CropActivity) GetId() int { return c.ID }

type NewCropActivity struct {
	CropCycleId  int             `json:"crop_cycle_id" binding:"required"`
	WarehouseId  int             `json:"warehouse_id" binding:"required"`
	ItemId       int             `json:"item_id" binding:"required"`
	ActivityDate time.Time       `json:"activity_date" binding:"required"`
	ActivityType string          `json:"activity_type"`
	Qty          decimal.Decimal `json:"qty"`
	CostClass    CostClass       `json:"cost_class"`
	Notes        string          `json:"notes"`
}

func (input *NewCropActivity) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return errors.New("crop cycle not found")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	item, err := utils.FetchCachedModel[Item](ctx, tenantId, input.ItemId)
	if err != nil {
		return errors.New("item not found")
	}
	if item.Type != ItemTypeInput {
		return errors.New("crop activities can only consume input items")
	}
	if !input.Qty.IsPositive() {
		return errors.New("qty must be positive")
	}
	return nil
}

func CreateCropActivity(ctx context.Context, input *NewCropActivity) (*CropActivity, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	costClass := input.CostClass
	if costClass == "" {
		costClass = CostClassShared
	}
	activity := CropActivity{
		TenantId:     tenantId,
		CropCycleId:  input.CropCycleId,
		WarehouseId:  input.WarehouseId,
		ItemId:       input.ItemId,
		ActivityDate: input.ActivityDate,
		ActivityType: input.ActivityType,
		Qty:          input.Qty,
		CostClass:    costClass,
		Notes:        input.Notes,
		Status:       DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func GetCropActivity(ctx context.Context, id int) (*CropActivity, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[CropActivity](ctx, tenantId, id)
}
