package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// WorkLog records labour performed against a crop cycle: units of work at an
// agreed rate. Posting debits crop WIP and credits wages payable.
type WorkLog struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	CropCycleId            int             `gorm:"index;not null" json:"crop_cycle_id" binding:"required"`
	PartyId                int             `gorm:"index;not null" json:"party_id" binding:"required"`
	WorkDate               time.Time       `gorm:"not null" json:"work_date" binding:"required"`
	WorkType               string          `gorm:"size:255" json:"work_type"`
	Units                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"units"`
	Rate                   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
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

func (w *WorkLog) GetId() int { return w.ID }

// Amount is the monetary value of the logged work, rounded to the cent.
func (w *WorkLog) Amount() decimal.Decimal {
	return w.Units.Mul(w.Rate).Round(2)
}

type NewWorkLog struct {
	CropCycleId int             `json:"crop_cycle_id" binding:"required"`
	PartyId     int             `json:"party_id" binding:"required"`
	WorkDate    time.Time       `json:"work_date" binding:"required"`
	WorkType    string          `json:"work_type"`
	Units       decimal.Decimal `json:"units"`
	Rate        decimal.Decimal `json:"rate"`
	CostClass   CostClass       `json:"cost_class"`
	Notes       string          `json:"notes"`
}

func (input *NewWorkLog) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return errors.New("crop cycle not found")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.PartyId); err != nil {
		return errors.New("party not found")
	}
	if !input.Units.IsPositive() {
		return errors.New("units must be positive")
	}
	if !input.Rate.IsPositive() {
		return errors.New("rate must be positive")
	}
	if input.CostClass != "" && input.CostClass != CostClassShared && input.CostClass != CostClassHariOnly {
		return errors.New("invalid cost class")
	}
	return nil
}

func CreateWorkLog(ctx context.Context, input *NewWorkLog) (*WorkLog, error) {
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
	workLog := WorkLog{
		TenantId:    tenantId,
		CropCycleId: input.CropCycleId,
		PartyId:     input.PartyId,
		WorkDate:    input.WorkDate,
		WorkType:    input.WorkType,
		Units:       input.Units,
		Rate:        input.Rate,
		CostClass:   costClass,
		Notes:       input.Notes,
		Status:      DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&workLog).Error; err != nil {
		return nil, err
	}
	return &workLog, nil
}

func GetWorkLog(ctx context.Context, id int) (*WorkLog, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[WorkLog](ctx, tenantId, id)
}
