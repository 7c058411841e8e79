package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockBalance holds the live moving-average position per (tenant, warehouse,
// item). Only the inventory valuation engine writes these rows; document
// services never mutate them directly.
type StockBalance struct {
	ID          int             `gorm:"primary_key" json:"id"`
	TenantId    string          `gorm:"size:64;index;not null;index:uniq_stock_key,unique" json:"tenant_id"`
	WarehouseId int             `gorm:"not null;index:uniq_stock_key,unique" json:"warehouse_id"`
	ItemId      int             `gorm:"not null;index:uniq_stock_key,unique" json:"item_id"`
	QtyOnHand   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_on_hand"`
	ValueOnHand decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"value_on_hand"`
	WacCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"wac_cost"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockMovement is the append-only movement ledger. Summing qty/value deltas
// for a (warehouse, item) key reproduces the current balance; this is both the
// audit trail and the reversal substrate.
type StockMovement struct {
	ID               int               `gorm:"primary_key" json:"id"`
	TenantId         string            `gorm:"size:64;index;not null;index:idx_mv_key,priority:1" json:"tenant_id"`
	WarehouseId      int               `gorm:"not null;index:idx_mv_key,priority:2" json:"warehouse_id"`
	ItemId           int               `gorm:"not null;index:idx_mv_key,priority:3" json:"item_id"`
	MovementType     MovementType      `gorm:"size:16;not null" json:"movement_type"`
	QtyDelta         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"qty_delta"`
	ValueDelta       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"value_delta"`
	UnitCostSnapshot decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"unit_cost_snapshot"`
	PostingGroupId   int               `gorm:"index;not null" json:"posting_group_id"`
	SourceType       PostingSourceType `gorm:"size:32;not null" json:"source_type"`
	SourceId         int               `gorm:"not null" json:"source_id"`
	OccurredAt       time.Time         `gorm:"index;not null;index:idx_mv_key,priority:4" json:"occurred_at"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (m *StockMovement) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: stock_movements cannot be updated")
}

func (m *StockMovement) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: stock_movements cannot be deleted")
}

// GetStockOnHand returns live balances, optionally filtered by warehouse/item.
func GetStockOnHand(ctx context.Context, warehouseId *int, itemId *int) ([]*StockBalance, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if warehouseId != nil && *warehouseId > 0 {
		dbCtx = dbCtx.Where("warehouse_id = ?", *warehouseId)
	}
	if itemId != nil && *itemId > 0 {
		dbCtx = dbCtx.Where("item_id = ?", *itemId)
	}
	var balances []*StockBalance
	if err := dbCtx.Order("warehouse_id, item_id").Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}
