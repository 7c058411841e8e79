package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingGroup is the atomic unit of one balanced double-entry transaction
// plus its allocation rows. Created exactly once per (tenant, idempotency_key)
// or per (tenant, source_type, source_id) depending on the document family.
type PostingGroup struct {
	ID                       int               `gorm:"primary_key" json:"id"`
	TenantId                 string            `gorm:"size:64;index;not null;index:uniq_pg_idem,unique;index:idx_pg_source,priority:1" json:"tenant_id"`
	CropCycleId              *int              `gorm:"index" json:"crop_cycle_id"`
	SourceType               PostingSourceType `gorm:"size:32;not null;index:idx_pg_source,priority:2" json:"source_type"`
	SourceId                 int               `gorm:"not null;index:idx_pg_source,priority:3" json:"source_id"`
	SequenceNo               int64             `gorm:"not null;default:0" json:"sequence_no"`
	GroupNumber              string            `gorm:"size:64" json:"group_number"`
	PostingDate              time.Time         `gorm:"index;not null" json:"posting_date"`
	CurrencyCode             string            `gorm:"size:8;not null" json:"currency_code"`
	IdempotencyKey           *string           `gorm:"size:128;index:uniq_pg_idem,unique" json:"idempotency_key"`
	ReversalOfPostingGroupId *int              `gorm:"index" json:"reversal_of_posting_group_id"`
	CorrectionReason         *string           `gorm:"type:text" json:"correction_reason"`
	LedgerEntries            []LedgerEntry     `gorm:"foreignKey:PostingGroupId" json:"ledger_entries"`
	AllocationRows           []AllocationRow   `gorm:"foreignKey:PostingGroupId" json:"allocation_rows"`
	CreatedAt                time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// LedgerEntry carries exactly one non-zero side. For any posting group the
// debit and credit sums agree to within 0.01 of the currency unit.
type LedgerEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"size:64;index;not null;index:idx_le_acct_date,priority:1" json:"tenant_id"`
	PostingGroupId int             `gorm:"index;not null" json:"posting_group_id"`
	AccountId      int             `gorm:"index;not null;index:idx_le_acct_date,priority:2" json:"account_id"`
	EntryDate      time.Time       `gorm:"index;not null;index:idx_le_acct_date,priority:3" json:"entry_date"`
	Description    string          `gorm:"size:255" json:"description"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_amount"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	CurrencyCode   string          `gorm:"size:8;not null" json:"currency_code"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// AllocationRow attributes a posting group amount to a crop cycle / party /
// machine for audit and settlement aggregation. The rule snapshot is an
// opaque JSON payload, write-once, never parsed for business logic.
type AllocationRow struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"size:64;index;not null" json:"tenant_id"`
	PostingGroupId int             `gorm:"index;not null" json:"posting_group_id"`
	CropCycleId    *int            `gorm:"index" json:"crop_cycle_id"`
	PartyId        *int            `gorm:"index" json:"party_id"`
	MachineId      *int            `gorm:"index" json:"machine_id"`
	AllocationType AllocationType  `gorm:"size:32;not null;index" json:"allocation_type"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	RuleSnapshot   []byte          `gorm:"type:json" json:"rule_snapshot"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

/// Ledger immutability guardrails:
// - ledger_entries and allocation_rows are append-only (no updates/deletes).
// - posting_groups are never updated or deleted; corrections are expressed by
//   inserting a reversal group that references the original.

func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be updated")
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be deleted")
}

func (r *AllocationRow) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: allocation_rows cannot be updated")
}

func (r *AllocationRow) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: allocation_rows cannot be deleted")
}

func (g *PostingGroup) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: posting_groups cannot be updated")
}

func (g *PostingGroup) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: posting_groups cannot be deleted")
}

func (g *PostingGroup) GetId() int { return g.ID }
