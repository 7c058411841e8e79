package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// GoodsReceipt records purchased inputs arriving at a warehouse on supplier
// credit. Posting receives the stock at actual unit cost, debits inputs
// inventory and credits accounts payable for the supplier.
type GoodsReceipt struct {
	ID                     int                `gorm:"primary_key" json:"id"`
	TenantId               string             `gorm:"size:64;index;not null" json:"tenant_id"`
	SupplierPartyId        int                `gorm:"index;not null" json:"supplier_party_id" binding:"required"`
	WarehouseId            int                `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	ReceiptDate            time.Time          `gorm:"not null" json:"receipt_date" binding:"required"`
	ReferenceNo            string             `gorm:"size:255" json:"reference_no"`
	Notes                  string             `gorm:"type:text" json:"notes"`
	Status                 DocumentStatus     `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int               `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int               `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time         `json:"posting_date"`
	PostedAt               *time.Time         `json:"posted_at"`
	ReversedAt             *time.Time         `json:"reversed_at"`
	Lines                  []GoodsReceiptLine `json:"lines"`
	CreatedAt              time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (g *GoodsReceipt) GetId() int { return g.ID }

// Total sums the per-line values, each rounded to the cent, so the ledger
// amount and the stock movement values always agree.
func (g *GoodsReceipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range g.Lines {
		total = total.Add(line.Qty.Mul(line.UnitCost).Round(2))
	}
	return total
}

type GoodsReceiptLine struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"size:64;index;not null" json:"tenant_id"`
	GoodsReceiptId int             `gorm:"index;not null" json:"goods_receipt_id"`
	ItemId         int             `gorm:"index;not null" json:"item_id" binding:"required"`
	Qty            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGoodsReceiptLine struct {
	ItemId   int             `json:"item_id" binding:"required"`
	Qty      decimal.Decimal `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type NewGoodsReceipt struct {
	SupplierPartyId int                   `json:"supplier_party_id" binding:"required"`
	WarehouseId     int                   `json:"warehouse_id" binding:"required"`
	ReceiptDate     time.Time             `json:"receipt_date" binding:"required"`
	ReferenceNo     string                `json:"reference_no"`
	Notes           string                `json:"notes"`
	Lines           []NewGoodsReceiptLine `json:"lines" binding:"required"`
}

func (input *NewGoodsReceipt) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.SupplierPartyId); err != nil {
		return errors.New("supplier party not found")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	if len(input.Lines) == 0 {
		return errors.New("at least one line is required")
	}
	for _, line := range input.Lines {
		item, err := utils.FetchCachedModel[Item](ctx, tenantId, line.ItemId)
		if err != nil {
			return errors.New("item not found")
		}
		if item.Type != ItemTypeInput {
			return errors.New("goods receipts can only receive input items")
		}
		if !line.Qty.IsPositive() {
			return errors.New("line qty must be positive")
		}
		if line.UnitCost.IsNegative() {
			return errors.New("line unit cost cannot be negative")
		}
	}
	return nil
}

func CreateGoodsReceipt(ctx context.Context, input *NewGoodsReceipt) (*GoodsReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	receipt := GoodsReceipt{
		TenantId:        tenantId,
		SupplierPartyId: input.SupplierPartyId,
		WarehouseId:     input.WarehouseId,
		ReceiptDate:     input.ReceiptDate,
		ReferenceNo:     input.ReferenceNo,
		Notes:           input.Notes,
		Status:          DocumentStatusDraft,
	}
	for _, line := range input.Lines {
		receipt.Lines = append(receipt.Lines, GoodsReceiptLine{
			TenantId: tenantId,
			ItemId:   line.ItemId,
			Qty:      line.Qty,
			UnitCost: line.UnitCost,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func GetGoodsReceipt(ctx context.Context, id int) (*GoodsReceipt, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	var receipt GoodsReceipt
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
