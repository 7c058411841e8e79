package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
)

// JournalEntry is a manual accounting entry with user supplied lines. The
// lines must already balance; posting copies them into a posting group
// verbatim.
type JournalEntry struct {
	ID                     int                `gorm:"primary_key" json:"id"`
	TenantId               string             `gorm:"size:64;index;not null" json:"tenant_id"`
	EntryDate              time.Time          `gorm:"not null" json:"entry_date" binding:"required"`
	Memo                   string             `gorm:"size:255" json:"memo"`
	Status                 DocumentStatus     `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *int               `gorm:"index" json:"posting_group_id"`
	ReversalPostingGroupId *int               `gorm:"index" json:"reversal_posting_group_id"`
	PostingDate            *time.Time         `json:"posting_date"`
	PostedAt               *time.Time         `json:"posted_at"`
	ReversedAt             *time.Time         `json:"reversed_at"`
	Lines                  []JournalEntryLine `json:"lines"`
	CreatedAt              time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *JournalEntry) GetId() int { return j.ID }

type JournalEntryLine struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"size:64;index;not null" json:"tenant_id"`
	JournalEntryId int             `gorm:"index;not null" json:"journal_entry_id"`
	AccountId      int             `gorm:"index;not null" json:"account_id" binding:"required"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_amount"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	Description    string          `gorm:"size:255" json:"description"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewJournalEntryLine struct {
	AccountId    int             `json:"account_id" binding:"required"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	Description  string          `json:"description"`
}

type NewJournalEntry struct {
	EntryDate time.Time             `json:"entry_date" binding:"required"`
	Memo      string                `json:"memo"`
	Lines     []NewJournalEntryLine `json:"lines" binding:"required"`
}

func (input *NewJournalEntry) validate(ctx context.Context, tenantId string) error {
	if len(input.Lines) < 2 {
		return errors.New("at least two lines are required")
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, line := range input.Lines {
		if err := utils.ValidateResourceId[Account](ctx, tenantId, line.AccountId); err != nil {
			return errors.New("account not found")
		}
		if line.DebitAmount.IsNegative() || line.CreditAmount.IsNegative() {
			return errors.New("line amounts cannot be negative")
		}
		if line.DebitAmount.IsPositive() == line.CreditAmount.IsPositive() {
			return errors.New("each line must have exactly one of debit or credit")
		}
		totalDebit = totalDebit.Add(line.DebitAmount)
		totalCredit = totalCredit.Add(line.CreditAmount)
	}
	if !totalDebit.Sub(totalCredit).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		return errors.New("journal entry lines do not balance")
	}
	return nil
}

func CreateJournalEntry(ctx context.Context, input *NewJournalEntry) (*JournalEntry, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	entry := JournalEntry{
		TenantId:  tenantId,
		EntryDate: input.EntryDate,
		Memo:      input.Memo,
		Status:    DocumentStatusDraft,
	}
	for _, line := range input.Lines {
		entry.Lines = append(entry.Lines, JournalEntryLine{
			TenantId:     tenantId,
			AccountId:    line.AccountId,
			DebitAmount:  line.DebitAmount,
			CreditAmount: line.CreditAmount,
			Description:  line.Description,
		})
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func GetJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	var entry JournalEntry
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
