package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LandParcel struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TenantId   string          `gorm:"size:64;index;not null" json:"tenant_id"`
	Name       string          `gorm:"size:255;not null" json:"name" binding:"required"`
	TotalAcres decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_acres"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CropCycleParcel records acreage claimed by a crop cycle on a parcel.
type CropCycleParcel struct {
	ID           int             `gorm:"primary_key" json:"id"`
	TenantId     string          `gorm:"size:64;index;not null" json:"tenant_id"`
	CropCycleId  int             `gorm:"index;not null" json:"crop_cycle_id"`
	LandParcelId int             `gorm:"index;not null" json:"land_parcel_id"`
	Acres        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"acres"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewLandParcel struct {
	Name       string          `json:"name" binding:"required"`
	TotalAcres decimal.Decimal `json:"total_acres"`
}

func CreateLandParcel(ctx context.Context, input *NewLandParcel) (*LandParcel, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateUnique[LandParcel](ctx, tenantId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if !input.TotalAcres.IsPositive() {
		return nil, errors.New("total acres must be positive")
	}
	parcel := LandParcel{TenantId: tenantId, Name: input.Name, TotalAcres: input.TotalAcres}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&parcel).Error; err != nil {
		return nil, err
	}
	return &parcel, nil
}

// AllocateParcelAcreage claims acreage for a crop cycle. The parcel row is
// locked exclusively for the duration of the check-and-insert so two
// concurrent allocations cannot both pass the capacity check against a stale
// sum.
func AllocateParcelAcreage(ctx context.Context, cropCycleId int, landParcelId int, acres decimal.Decimal) (*CropCycleParcel, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if !acres.IsPositive() {
		return nil, errors.New("acres must be positive")
	}
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, cropCycleId); err != nil {
		return nil, errors.New("crop cycle not found")
	}

	db := config.GetDB()
	var allocation *CropCycleParcel
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parcel LandParcel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND id = ?", tenantId, landParcelId).
			First(&parcel).Error; err != nil {
			return errors.New("land parcel not found")
		}

		var allocated decimal.Decimal
		if err := tx.Model(&CropCycleParcel{}).
			Where("tenant_id = ? AND land_parcel_id = ?", tenantId, landParcelId).
			Select("COALESCE(SUM(acres), 0)").
			Scan(&allocated).Error; err != nil {
			return err
		}
		if allocated.Add(acres).GreaterThan(parcel.TotalAcres) {
			return errors.New("parcel acreage exceeded")
		}

		allocation = &CropCycleParcel{
			TenantId:     tenantId,
			CropCycleId:  cropCycleId,
			LandParcelId: landParcelId,
			Acres:        acres,
		}
		return tx.Create(allocation).Error
	})
	if err != nil {
		return nil, err
	}
	return allocation, nil
}
