package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// StockTransfer moves stock between two warehouses. Value moves at the
// source warehouse's moving average cost, so the posting nets to zero on
// the inventory account while the per-warehouse balances shift.
type StockTransfer struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	FromWarehouseId        int             `gorm:"index;not null" json:"from_warehouse_id" binding:"required"`
	ToWarehouseId          int             `gorm:"index;not null" json:"to_warehouse_id" binding:"required"`
	ItemId                 int             `gorm:"index;not null" json:"item_id" binding:"required"`
	TransferDate           time.Time       `gorm:"not null" json:"transfer_date" binding:"required"`
	Qty                    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
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

func (s *StockTransfer) GetId() int { return s.ID }

type NewStockTransfer struct {
	FromWarehouseId int             `json:"from_warehouse_id" binding:"required"`
	ToWarehouseId   int             `json:"to_warehouse_id" binding:"required"`
	ItemId          int             `json:"item_id" binding:"required"`
	TransferDate    time.Time       `json:"transfer_date" binding:"required"`
	Qty             decimal.Decimal `json:"qty"`
	Notes           string          `json:"notes"`
}

func (input *NewStockTransfer) validate(ctx context.Context, tenantId string) error {
	if input.FromWarehouseId == input.ToWarehouseId {
		return errors.New("source and destination warehouses must differ")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.FromWarehouseId); err != nil {
		return errors.New("source warehouse not found")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.ToWarehouseId); err != nil {
		return errors.New("destination warehouse not found")
	}
	if err := utils.ValidateResourceId[Item](ctx, tenantId, input.ItemId); err != nil {
		return errors.New("item not found")
	}
	if !input.Qty.IsPositive() {
		return errors.New("qty must be positive")
	}
	return nil
}

func CreateStockTransfer(ctx context.Context, input *NewStockTransfer) (*StockTransfer, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	transfer := StockTransfer{
		TenantId:        tenantId,
		FromWarehouseId: input.FromWarehouseId,
		ToWarehouseId:   input.ToWarehouseId,
		ItemId:          input.ItemId,
		TransferDate:    input.TransferDate,
		Qty:             input.Qty,
		Notes:           input.Notes,
		Status:          DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func GetStockTransfer(ctx context.Context, id int) (*StockTransfer, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[StockTransfer](ctx, tenantId, id)
}
