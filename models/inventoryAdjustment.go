package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryAdjustment corrects on-hand quantity after a physical count.
// Positive deltas book in at the current moving average cost against the
// adjustment gain account; negative deltas write off at the same cost
// against the adjustment loss account.
type InventoryAdjustment struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	WarehouseId            int             `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	ItemId                 int             `gorm:"index;not null" json:"item_id" binding:"required"`
	AdjustmentDate         time.Time       `gorm:"not null" json:"adjustment_date" binding:"required"`
	QtyDelta               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_delta"`
	Reason                 string          `gorm:"size:255" json:"reason"`
	Status                 DocumentStatus  `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int            `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int            `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time      `json:"posting_date"`
	PostedAt               *time.Time      `json:"posted_at"`
	ReversedAt             *time.Time      `json:"reversed_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *InventoryAdjustment) GetId() int { return a.ID }

type NewInventoryAdjustment struct {
	WarehouseId    int             `json:"warehouse_id" binding:"required"`
	ItemId         int             `json:"item_id" binding:"required"`
	AdjustmentDate time.Time       `json:"adjustment_date" binding:"required"`
	QtyDelta       decimal.Decimal `json:"qty_delta"`
	Reason         string          `json:"reason"`
}

func (input *NewInventoryAdjustment) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	if err := utils.ValidateResourceId[Item](ctx, tenantId, input.ItemId); err != nil {
		return errors.New("item not found")
	}
	if input.QtyDelta.IsZero() {
		return errors.New("qty delta cannot be zero")
	}
	if input.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

func CreateInventoryAdjustment(ctx context.Context, input *NewInventoryAdjustment) (*InventoryAdjustment, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	adjustment := InventoryAdjustment{
		TenantId:       tenantId,
		WarehouseId:    input.WarehouseId,
		ItemId:         input.ItemId,
		AdjustmentDate: input.AdjustmentDate,
		QtyDelta:       input.QtyDelta,
		Reason:         input.Reason,
		Status:         DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&adjustment).Error; err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func GetInventoryAdjustment(ctx context.Context, id int) (*InventoryAdjustment, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[InventoryAdjustment](ctx, tenantId, id)
}
