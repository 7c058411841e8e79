package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// MachineryJob is paid work done for an outside customer with a farm
// machine. Posting debits receivables and credits machinery income.
type MachineryJob struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	MachineId              int             `gorm:"index;not null" json:"machine_id" binding:"required"`
	CustomerPartyId        int             `gorm:"index;not null" json:"customer_party_id" binding:"required"`
	JobDate                time.Time       `gorm:"not null" json:"job_date" binding:"required"`
	Hours                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hours"`
	Rate                   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
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

func (j *MachineryJob) GetId() int { return j.ID }

func (j *MachineryJob) Amount() decimal.Decimal {
	return j.Hours.Mul(j.Rate).Round(2)
}

type NewMachineryJob struct {
	MachineId       int             `json:"machine_id" binding:"required"`
	CustomerPartyId int             `json:"customer_party_id" binding:"required"`
	JobDate         time.Time       `json:"job_date" binding:"required"`
	Hours           decimal.Decimal `json:"hours"`
	Rate            decimal.Decimal `json:"rate"`
	Notes           string          `json:"notes"`
}

func CreateMachineryJob(ctx context.Context, input *NewMachineryJob) (*MachineryJob, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateResourceId[Machine](ctx, tenantId, input.MachineId); err != nil {
		return nil, errors.New("machine not found")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.CustomerPartyId); err != nil {
		return nil, errors.New("customer party not found")
	}
	if !input.Hours.IsPositive() {
		return nil, errors.New("hours must be positive")
	}
	if !input.Rate.IsPositive() {
		return nil, errors.New("rate must be positive")
	}

	job := MachineryJob{
		TenantId:        tenantId,
		MachineId:       input.MachineId,
		CustomerPartyId: input.CustomerPartyId,
		JobDate:         input.JobDate,
		Hours:           input.Hours,
		Rate:            input.Rate,
		Notes:           input.Notes,
		Status:          DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// MachineryService is maintenance or repair bought from a supplier for a
// machine. Posting debits machinery expense and credits accounts payable.
type MachineryService struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	MachineId              int             `gorm:"index;not null" json:"machine_id" binding:"required"`
	SupplierPartyId        int             `gorm:"index;not null" json:"supplier_party_id" binding:"required"`
	ServiceDate            time.Time       `gorm:"not null" json:"service_date" binding:"required"`
	Amount                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Description            string          `gorm:"size:255" json:"description"`
	Status                 DocumentStatus  `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int            `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int            `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time      `json:"posting_date"`
	PostedAt               *time.Time      `json:"posted_at"`
	ReversedAt             *time.Time      `json:"reversed_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *MachineryService) GetId() int { return s.ID }

type NewMachineryService struct {
	MachineId       int             `json:"machine_id" binding:"required"`
	SupplierPartyId int             `json:"supplier_party_id" binding:"required"`
	ServiceDate     time.Time       `json:"service_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
}

func CreateMachineryService(ctx context.Context, input *NewMachineryService) (*MachineryService, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateResourceId[Machine](ctx, tenantId, input.MachineId); err != nil {
		return nil, errors.New("machine not found")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.SupplierPartyId); err != nil {
		return nil, errors.New("supplier party not found")
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}

	service := MachineryService{
		TenantId:        tenantId,
		MachineId:       input.MachineId,
		SupplierPartyId: input.SupplierPartyId,
		ServiceDate:     input.ServiceDate,
		Amount:          input.Amount,
		Description:     input.Description,
		Status:          DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// MachineryCharge bills a machine's internal farm use to the crop cycles
// that used it. Posting debits each cycle's WIP by its share of hours and
// credits machinery income for the total.
type MachineryCharge struct {
	ID                     int                   `gorm:"primary_key" json:"id"`
	TenantId               string                `gorm:"size:64;index;not null" json:"tenant_id"`
	MachineId              int                   `gorm:"index;not null" json:"machine_id" binding:"required"`
	ChargeDate             time.Time             `gorm:"not null" json:"charge_date" binding:"required"`
	Rate                   decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Status                 DocumentStatus        `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int                  `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int                  `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time            `json:"posting_date"`
	PostedAt               *time.Time            `json:"posted_at"`
	ReversedAt             *time.Time            `json:"reversed_at"`
	Lines                  []MachineryChargeLine `json:"lines"`
	CreatedAt              time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *MachineryCharge) GetId() int { return c.ID }

// Total is the charge value across all cycle lines, rounded to the cent.
func (c *MachineryCharge) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Hours.Mul(c.Rate))
	}
	return total.Round(2)
}

type MachineryChargeLine struct {
	ID                int             `gorm:"primary_key" json:"id"`
	TenantId          string          `gorm:"size:64;index;not null" json:"tenant_id"`
	MachineryChargeId int             `gorm:"index;not null" json:"machinery_charge_id"`
	CropCycleId       int             `gorm:"index;not null" json:"crop_cycle_id" binding:"required"`
	Hours             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hours"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMachineryChargeLine struct {
	CropCycleId int             `json:"crop_cycle_id" binding:"required"`
	Hours       decimal.Decimal `json:"hours"`
}

type NewMachineryCharge struct {
	MachineId  int                      `json:"machine_id" binding:"required"`
	ChargeDate time.Time                `json:"charge_date" binding:"required"`
	Rate       *decimal.Decimal         `json:"rate"`
	Lines      []NewMachineryChargeLine `json:"lines" binding:"required"`
}

func CreateMachineryCharge(ctx context.Context, input *NewMachineryCharge) (*MachineryCharge, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	machine, err := utils.FetchCachedModel[Machine](ctx, tenantId, input.MachineId)
	if err != nil {
		return nil, errors.New("machine not found")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("at least one line is required")
	}
	for _, line := range input.Lines {
		if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, line.CropCycleId); err != nil {
			return nil, errors.New("crop cycle not found")
		}
		if !line.Hours.IsPositive() {
			return nil, errors.New("line hours must be positive")
		}
	}

	// Defaults to the machine's standing hourly rate when no override given.
	rate := machine.HourlyRate
	if input.Rate != nil {
		rate = *input.Rate
	}
	if !rate.IsPositive() {
		return nil, errors.New("rate must be positive")
	}

	charge := MachineryCharge{
		TenantId:   tenantId,
		MachineId:  input.MachineId,
		ChargeDate: input.ChargeDate,
		Rate:       rate,
		Status:     DocumentStatusDraft,
	}
	for _, line := range input.Lines {
		charge.Lines = append(charge.Lines, MachineryChargeLine{
			TenantId:    tenantId,
			CropCycleId: line.CropCycleId,
			Hours:       line.Hours,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&charge).Error; err != nil {
		return nil, err
	}
	return &charge, nil
}

func GetMachineryCharge(ctx context.Context, id int) (*MachineryCharge, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	var charge MachineryCharge
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&charge).Error
	if err != nil {
		return nil, err
	}
	return &charge, nil
}
