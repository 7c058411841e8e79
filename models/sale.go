package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Sale sells harvested produce to a buyer on credit. Posting books the
// revenue against receivables and relieves produce inventory at moving
// average cost into cost of goods sold.
type Sale struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	BuyerPartyId           int             `gorm:"index;not null" json:"buyer_party_id" binding:"required"`
	WarehouseId            int             `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	CropCycleId            *int            `gorm:"index" json:"crop_cycle_id"`
	SaleDate               time.Time       `gorm:"not null" json:"sale_date" binding:"required"`
	ItemId                 int             `gorm:"index;not null" json:"item_id" binding:"required"`
	Qty                    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitPrice              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
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

func (s *Sale) GetId() int { return s.ID }

// Total is the gross sale value, rounded to the cent.
func (s *Sale) Total() decimal.Decimal {
	return s.Qty.Mul(s.UnitPrice).Round(2)
}

type NewSale struct {
	BuyerPartyId int             `json:"buyer_party_id" binding:"required"`
	WarehouseId  int             `json:"warehouse_id" binding:"required"`
	CropCycleId  *int            `json:"crop_cycle_id"`
	SaleDate     time.Time       `json:"sale_date" binding:"required"`
	ItemId       int             `json:"item_id" binding:"required"`
	Qty          decimal.Decimal `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Notes        string          `json:"notes"`
}

func (input *NewSale) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.BuyerPartyId); err != nil {
		return errors.New("buyer party not found")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	if input.CropCycleId != nil {
		if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, *input.CropCycleId); err != nil {
			return errors.New("crop cycle not found")
		}
	}
	item, err := utils.FetchCachedModel[Item](ctx, tenantId, input.ItemId)
	if err != nil {
		return errors.New("item not found")
	}
	if item.Type != ItemTypeProduce {
		return errors.New("sales can only sell produce items")
	}
	if !input.Qty.IsPositive() {
		return errors.New("qty must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return errors.New("unit price cannot be negative")
	}
	return nil
}

func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	sale := Sale{
		TenantId:     tenantId,
		BuyerPartyId: input.BuyerPartyId,
		WarehouseId:  input.WarehouseId,
		CropCycleId:  input.CropCycleId,
		SaleDate:     input.SaleDate,
		ItemId:       input.ItemId,
		Qty:          input.Qty,
		UnitPrice:    input.UnitPrice,
		Notes:        input.Notes,
		Status:       DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Sale](ctx, tenantId, id)
}
