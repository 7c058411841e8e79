package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Harvest brings produce from the field into a warehouse. Posting moves the
// crop cycle's accumulated WIP into produce inventory and receives the
// harvested quantity at the resulting unit cost. Multiple harvest lines on
// one document split the WIP proportionally by quantity.
type Harvest struct {
	ID                     int            `gorm:"primary_key" json:"id"`
	TenantId               string         `gorm:"size:64;index;not null" json:"tenant_id"`
	CropCycleId            int            `gorm:"index;not null" json:"crop_cycle_id" binding:"required"`
	WarehouseId            int            `gorm:"index;not null" json:"warehouse_id" binding:"required"`
	HarvestDate            time.Time      `gorm:"not null" json:"harvest_date" binding:"required"`
	Notes                  string         `gorm:"type:text" json:"notes"`
	Status                 DocumentStatus `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int           `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int           `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time     `json:"posting_date"`
	PostedAt               *time.Time     `json:"posted_at"`
	ReversedAt             *time.Time     `json:"reversed_at"`
	Lines                  []HarvestLine  `json:"lines"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (h *Harvest) GetId() int { return h.ID }

type HarvestLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	TenantId  string          `gorm:"size:64;index;not null" json:"tenant_id"`
	HarvestId int             `gorm:"index;not null" json:"harvest_id"`
	ItemId    int             `gorm:"index;not null" json:"item_id" binding:"required"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewHarvestLine struct {
	ItemId int             `json:"item_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty"`
}

type NewHarvest struct {
	CropCycleId int              `json:"crop_cycle_id" binding:"required"`
	WarehouseId int              `json:"warehouse_id" binding:"required"`
	HarvestDate time.Time        `json:"harvest_date" binding:"required"`
	Notes       string           `json:"notes"`
	Lines       []NewHarvestLine `json:"lines" binding:"required"`
}

func (input *NewHarvest) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return errors.New("crop cycle not found")
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
		if item.Type != ItemTypeProduce {
			return errors.New("harvests can only receive produce items")
		}
		if !line.Qty.IsPositive() {
			return errors.New("line qty must be positive")
		}
	}
	return nil
}

func CreateHarvest(ctx context.Context, input *NewHarvest) (*Harvest, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	harvest := Harvest{
		TenantId:    tenantId,
		CropCycleId: input.CropCycleId,
		WarehouseId: input.WarehouseId,
		HarvestDate: input.HarvestDate,
		Notes:       input.Notes,
		Status:      DocumentStatusDraft,
	}
	for _, line := range input.Lines {
		harvest.Lines = append(harvest.Lines, HarvestLine{
			TenantId: tenantId,
			ItemId:   line.ItemId,
			Qty:      line.Qty,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&harvest).Error; err != nil {
		return nil, err
	}
	return &harvest, nil
}

func GetHarvest(ctx context.Context, id int) (*Harvest, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	var harvest Harvest
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&harvest).Error
	if err != nil {
		return nil, err
	}
	return &harvest, nil
}
