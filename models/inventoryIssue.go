package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// InventoryIssue takes stock out of a warehouse outside the crop activity
// flow. Issues tied to a crop cycle accumulate into crop WIP; untied issues
// expense directly to the farm expense account.
type InventoryIssue struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	WarehouseId            int             `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	ItemId                 int             `gorm:"index;not null" json:"item_id" binding:"required"`
	CropCycleId            *int            `gorm:"index" json:"crop_cycle_id"`
	IssueDate              time.Time       `gorm:"not null" json:"issue_date" binding:"required"`
	Qty                    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CostClass              CostClass       `gorm:"size:16;not null;default:'SHARED'" json:"cost_class"`
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

func (i *InventoryIssue) GetId() int { return i.ID }

type NewInventoryIssue struct {
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	ItemId      int             `json:"item_id" binding:"required"`
	CropCycleId *int            `json:"crop_cycle_id"`
	IssueDate   time.Time       `json:"issue_date" binding:"required"`
	Qty         decimal.Decimal `json:"qty"`
	CostClass   CostClass       `json:"cost_class"`
	Reason      string          `json:"reason"`
}

func (input *NewInventoryIssue) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	if err := utils.ValidateResourceId[Item](ctx, tenantId, input.ItemId); err != nil {
		return errors.New("item not found")
	}
	if input.CropCycleId != nil {
		if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, *input.CropCycleId); err != nil {
			return errors.New("crop cycle not found")
		}
	}
	if !input.Qty.IsPositive() {
		return errors.New("qty must be positive")
	}
	return nil
}

func CreateInventoryIssue(ctx context.Context, input *NewInventoryIssue) (*InventoryIssue, error) {
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
	issue := InventoryIssue{
		TenantId:    tenantId,
		WarehouseId: input.WarehouseId,
		ItemId:      input.ItemId,
		CropCycleId: input.CropCycleId,
		IssueDate:   input.IssueDate,
		Qty:         input.Qty,
		CostClass:   costClass,
		Reason:      input.Reason,
		Status:      DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func GetInventoryIssue(ctx context.Context, id int) (*InventoryIssue, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[InventoryIssue](ctx, tenantId, id)
}
