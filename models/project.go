package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Project carries the profit-share rule applied by the settlement waterfall.
// Kamdari comes off pool profit first; the remainder splits landlord/hari,
// whose percentages must sum to exactly 100.
type Project struct {
	ID              int             `gorm:"primary_key" json:"id"`
	TenantId        string          `gorm:"size:64;index;not null" json:"tenant_id"`
	Name            string          `gorm:"size:255;not null" json:"name" binding:"required"`
	LandlordPartyId int             `gorm:"index;not null" json:"landlord_party_id" binding:"required"`
	HariPartyId     int             `gorm:"index;not null" json:"hari_party_id" binding:"required"`
	KamdariPartyId  *int            `gorm:"index" json:"kamdari_party_id"`
	KamdariPct      decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"kamdari_pct"`
	LandlordPct     decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"landlord_pct"`
	HariPct         decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"hari_pct"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CropCycle is the operational unit documents post against: one crop season
// on one project. Posting requires the cycle to be OPEN and, when bounds are
// set, the posting date to fall inside them.
type CropCycle struct {
	ID        int             `gorm:"primary_key" json:"id"`
	TenantId  string          `gorm:"size:64;index;not null" json:"tenant_id"`
	ProjectId int             `gorm:"index;not null" json:"project_id" binding:"required"`
	Name      string          `gorm:"size:255;not null" json:"name" binding:"required"`
	CropName  string          `gorm:"size:255" json:"crop_name"`
	Status    CropCycleStatus `gorm:"size:16;not null;default:'OPEN'" json:"status"`
	StartDate *time.Time      `json:"start_date"`
	EndDate   *time.Time      `json:"end_date"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Name            string          `json:"name" binding:"required"`
	LandlordPartyId int             `json:"landlord_party_id" binding:"required"`
	HariPartyId     int             `json:"hari_party_id" binding:"required"`
	KamdariPartyId  *int            `json:"kamdari_party_id"`
	KamdariPct      decimal.Decimal `json:"kamdari_pct"`
	LandlordPct     decimal.Decimal `json:"landlord_pct"`
	HariPct         decimal.Decimal `json:"hari_pct"`
}

func (input *NewProject) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.LandlordPartyId); err != nil {
		return errors.New("landlord party not found")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.HariPartyId); err != nil {
		return errors.New("hari party not found")
	}
	if input.KamdariPartyId != nil {
		if err := utils.ValidateResourceId[Party](ctx, tenantId, *input.KamdariPartyId); err != nil {
			return errors.New("kamdari party not found")
		}
	}
	hundred := decimal.NewFromInt(100)
	if input.KamdariPct.IsNegative() || input.KamdariPct.GreaterThan(hundred) {
		return errors.New("kamdari percentage must be between 0 and 100")
	}
	if input.LandlordPct.IsNegative() || input.HariPct.IsNegative() {
		return errors.New("share percentages cannot be negative")
	}
	if !input.LandlordPct.Add(input.HariPct).Equal(hundred) {
		return errors.New("landlord and hari percentages must sum to 100")
	}
	return nil
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	project := Project{
		TenantId:        tenantId,
		Name:            input.Name,
		LandlordPartyId: input.LandlordPartyId,
		HariPartyId:     input.HariPartyId,
		KamdariPartyId:  input.KamdariPartyId,
		KamdariPct:      input.KamdariPct,
		LandlordPct:     input.LandlordPct,
		HariPct:         input.HariPct,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

type NewCropCycle struct {
	ProjectId int        `json:"project_id" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	CropName  string     `json:"crop_name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

func CreateCropCycle(ctx context.Context, input *NewCropCycle) (*CropCycle, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateResourceId[Project](ctx, tenantId, input.ProjectId); err != nil {
		return nil, errors.New("project not found")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, errors.New("cycle end date cannot be before start date")
	}

	cycle := CropCycle{
		TenantId:  tenantId,
		ProjectId: input.ProjectId,
		Name:      input.Name,
		CropName:  input.CropName,
		Status:    CropCycleStatusOpen,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cycle).Error; err != nil {
		return nil, err
	}
	return &cycle, nil
}

// CloseCropCycle blocks further postings and reversals against the cycle.
func CloseCropCycle(ctx context.Context, id int) (*CropCycle, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	cycle, err := utils.FetchModel[CropCycle](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(cycle).Update("Status", CropCycleStatusClosed).Error; err != nil {
		return nil, err
	}
	cycle.Status = CropCycleStatusClosed
	return cycle, nil
}
