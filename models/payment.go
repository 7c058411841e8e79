package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Payment is cash moving in from a buyer or out to a supplier. Inbound
// payments debit cash and credit receivables; outbound payments debit
// payables and credit cash. Allocation against open documents is tracked
// separately in PaymentAllocation rows.
type Payment struct {
	ID                     int              `gorm:"primary_key" json:"id"`
	TenantId               string           `gorm:"size:64;index;not null" json:"tenant_id"`
	PartyId                int              `gorm:"index;not null" json:"party_id" binding:"required"`
	Direction              PaymentDirection `gorm:"size:8;not null" json:"direction" binding:"required"`
	PaymentDate            time.Time        `gorm:"not null" json:"payment_date" binding:"required"`
	Amount                 decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Method                 string           `gorm:"size:64" json:"method"`
	ReferenceNo            string           `gorm:"size:255" json:"reference_no"`
	Notes                  string           `gorm:"type:text" json:"notes"`
	Status                 DocumentStatus   `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int             `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int             `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time       `json:"posting_date"`
	PostedAt               *time.Time       `json:"posted_at"`
	ReversedAt             *time.Time       `json:"reversed_at"`
	CreatedAt              time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) GetId() int { return p.ID }

type NewPayment struct {
	PartyId     int              `json:"party_id" binding:"required"`
	Direction   PaymentDirection `json:"direction" binding:"required"`
	PaymentDate time.Time        `json:"payment_date" binding:"required"`
	Amount      decimal.Decimal  `json:"amount"`
	Method      string           `json:"method"`
	ReferenceNo string           `json:"reference_no"`
	Notes       string           `json:"notes"`
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateResourceId[Party](ctx, tenantId, input.PartyId); err != nil {
		return nil, errors.New("party not found")
	}
	if input.Direction != PaymentDirectionIn && input.Direction != PaymentDirectionOut {
		return nil, errors.New("direction must be IN or OUT")
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}

	payment := Payment{
		TenantId:    tenantId,
		PartyId:     input.PartyId,
		Direction:   input.Direction,
		PaymentDate: input.PaymentDate,
		Amount:      input.Amount,
		Method:      input.Method,
		ReferenceNo: input.ReferenceNo,
		Notes:       input.Notes,
		Status:      DocumentStatusDraft,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Payment](ctx, tenantId, id)
}
