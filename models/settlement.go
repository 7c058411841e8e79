package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Settlement is the computed close-out of a crop cycle: the kamdari fee off
// the pool profit, the landlord and hari split of the remainder, deduction
// of hari-only costs and the advance offset. The amounts here are a
// snapshot of what was posted; the posting group is the source of truth.
type Settlement struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	TenantId               string          `gorm:"size:64;index;not null" json:"tenant_id"`
	CropCycleId            int             `gorm:"index;not null" json:"crop_cycle_id"`
	SettlementDate         time.Time       `gorm:"not null" json:"settlement_date"`
	KamdariPct             decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"kamdari_pct"`
	LandlordPct            decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"landlord_pct"`
	HariPct                decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"hari_pct"`
	PoolRevenue            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pool_revenue"`
	SharedCosts            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shared_costs"`
	HariOnlyCosts          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hari_only_costs"`
	PoolProfit             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pool_profit"`
	KamdariAmount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"kamdari_amount"`
	LandlordAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"landlord_amount"`
	HariGross              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hari_gross"`
	HariNet                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hari_net"`
	AdvanceOffset          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"advance_offset"`
	Status                 DocumentStatus  `gorm:"size:16;not null;default:'POSTED';index" json:"status"`
	PostingGroupId         *int            `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int            `gorm:"index" json:"reversal_posting_group_id"`
	PostedAt               *time.Time      `json:"posted_at"`
	ReversedAt             *time.Time      `json:"reversed_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Settlement) GetId() int { return s.ID }

func GetSettlement(ctx context.Context, id int) (*Settlement, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Settlement](ctx, tenantId, id)
}

// GetActiveSettlementForCycle returns the posted, unreversed settlement for
// the cycle if one exists.
func GetActiveSettlementForCycle(ctx context.Context, tenantId string, cropCycleId int) (*Settlement, error) {
	var settlement Settlement
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND crop_cycle_id = ? AND status = ?", tenantId, cropCycleId, DocumentStatusPosted).
		First(&settlement).Error
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}
