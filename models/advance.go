package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Advance is cash paid out to a hari before settlement. Posting debits the
// hari advance asset and credits cash; settlement later offsets the
// outstanding balance against the hari's share.
type Advance struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	PartyId                int             `gorm:"index;not null" json:"party_id" binding:"required"`
	CropCycleId            *int            `gorm:"index" json:"crop_cycle_id"`
	AdvanceDate            time.Time       `gorm:"not null" json:"advance_date" binding:"required"`
	Amount                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
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

func (a *Advance) GetId() int { return a.ID }

type NewAdvance struct {
	PartyId     int             `json:"party_id" binding:"required"`
	CropCycleId *int            `json:"crop_cycle_id"`
	AdvanceDate time.Time       `json:"advance_date" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

func CreateAdvance(ctx context.Context, input *NewAdvance) (*Advance, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.PartyId); err != nil {
		return nil, errors.New("party not found")
	}
	if input.CropCycleId != nil {
		if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, *input.CropCycleId); err != nil {
			return nil, errors.New("crop cycle not found")
		}
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}

	advance := Advance{
		TenantId:    tenantId,
		PartyId:     input.PartyId,
		CropCycleId: input.CropCycleId,
		AdvanceDate: input.AdvanceDate,
		Amount:      input.Amount,
		Notes:       input.Notes,
		Status:      DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&advance).Error; err != nil {
		return nil, err
	}
	return &advance, nil
}

func GetAdvance(ctx context.Context, id int) (*Advance, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Advance](ctx, tenantId, id)
}

// GetOutstandingAdvance is the party's advance balance still unrecovered:
// posted advances less settlement offsets, with reversed groups excluded.
func GetOutstandingAdvance(ctx context.Context, tenantId string, partyId int) (decimal.Decimal, error) {
	db := config.GetDB()

	type row struct {
		Balance decimal.Decimal
	}
	var result row
	err := db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE ar.allocation_type WHEN ? THEN ar.amount ELSE -ar.amount END), 0) AS balance
		FROM allocation_rows ar
		JOIN posting_groups pg ON pg.id = ar.posting_group_id
		WHERE ar.tenant_id = ?
		  AND ar.party_id = ?
		  AND ar.allocation_type IN (?, ?)
		  AND pg.source_type <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM posting_groups rev
			WHERE rev.tenant_id = pg.tenant_id
			  AND rev.reversal_of_posting_group_id = pg.id
		  )`,
		AllocationTypeAdvance, tenantId, partyId,
		AllocationTypeAdvance, AllocationTypeReduceAdvance,
		SourceTypeReversal,
	).Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Balance, nil
}
