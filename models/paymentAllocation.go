package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentAllocation maps a posted payment onto an open document (a sale for
// inbound payments, a goods receipt for outbound). Allocations are metadata
// over the ledger; unapplying flips the status to VOID rather than deleting
// the row, so the history stays auditable.
type PaymentAllocation struct {
	ID           int                `gorm:"primary_key" json:"id"`
	TenantId     string             `gorm:"size:64;index;not null" json:"tenant_id"`
	PaymentId    int                `gorm:"index;not null" json:"payment_id"`
	DocumentType AllocatableDocType `gorm:"size:16;not null" json:"document_type"`
	DocumentId   int                `gorm:"index;not null" json:"document_id"`
	Amount       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status       AllocationStatus   `gorm:"size:8;not null;default:'ACTIVE';index" json:"status"`
	VoidedAt     *time.Time         `json:"voided_at"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *PaymentAllocation) GetId() int { return a.ID }

// GetAllocatedAmount sums the active allocations already placed against a
// document.
func GetAllocatedAmount(ctx context.Context, tenantId string, docType AllocatableDocType, documentId int) (decimal.Decimal, error) {
	db := config.GetDB()
	type row struct {
		Total decimal.Decimal
	}
	var result row
	err := db.WithContext(ctx).Model(&PaymentAllocation{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ? AND document_type = ? AND document_id = ? AND status = ?",
			tenantId, docType, documentId, AllocationStatusActive).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// GetPaymentAllocatedAmount sums the active allocations a payment has
// already placed.
func GetPaymentAllocatedAmount(ctx context.Context, tenantId string, paymentId int) (decimal.Decimal, error) {
	db := config.GetDB()
	type row struct {
		Total decimal.Decimal
	}
	var result row
	err := db.WithContext(ctx).Model(&PaymentAllocation{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ? AND payment_id = ? AND status = ?",
			tenantId, paymentId, AllocationStatusActive).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// GetActiveAllocations lists a payment's active allocations.
func GetActiveAllocations(ctx context.Context, tenantId string, paymentId int) ([]PaymentAllocation, error) {
	var allocations []PaymentAllocation
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ? AND status = ?", tenantId, paymentId, AllocationStatusActive).
		Order("id asc").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// VoidAllocation flips an allocation to VOID. Voiding twice is an error.
func VoidAllocation(ctx context.Context, tx *gorm.DB, allocation *PaymentAllocation) error {
	if allocation.Status == AllocationStatusVoid {
		return errors.New("allocation is already void")
	}
	now := time.Now()
	return tx.WithContext(ctx).Model(allocation).
		Updates(map[string]interface{}{"status": AllocationStatusVoid, "voided_at": now}).Error
}
