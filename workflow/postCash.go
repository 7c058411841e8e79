package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostAdvance pays cash out to a hari against the advance asset account.
func PostAdvance(ctx context.Context, id int, postingDate *time.Time) (*models.Advance, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Advance
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Advance](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			result = doc
			return nil
		}
		if doc.Status == models.DocumentStatusReversed {
			return ErrAlreadyReversed
		}

		date := resolvePostingDate(postingDate, doc.AdvanceDate)
		if doc.CropCycleId != nil {
			if err := assertOpenCycle(ctx, tx, tenantId, *doc.CropCycleId, date); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Advance #%d", doc.ID)
		partyId := doc.PartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeAdvance,
			SourceId:       doc.ID,
			CropCycleId:    doc.CropCycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeAdvance, doc.ID),
		}
		plan.addLine(models.AccountCodeAdvanceHari, doc.Amount, decimal.Zero, description)
		plan.addLine(models.AccountCodeCash, decimal.Zero, doc.Amount, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			CropCycleId: doc.CropCycleId,
			PartyId:     &partyId,
			Type:        models.AllocationTypeAdvance,
			Amount:      doc.Amount,
		})

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}
		if err := markPosted(ctx, tx, doc, group); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostPayment books cash in from a buyer (debit cash, credit receivables)
// or cash out to a supplier (debit payables, credit cash).
func PostPayment(ctx context.Context, id int, postingDate *time.Time) (*models.Payment, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Payment
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.Payment](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			result = doc
			return nil
		}
		if doc.Status == models.DocumentStatusReversed {
			return ErrAlreadyReversed
		}

		date := resolvePostingDate(postingDate, doc.PaymentDate)
		description := fmt.Sprintf("Payment #%d %s", doc.ID, doc.ReferenceNo)

		plan := &LedgerPlan{
			SourceType:     models.SourceTypePayment,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypePayment, doc.ID),
		}
		if doc.Direction == models.PaymentDirectionIn {
			plan.addLine(models.AccountCodeCash, doc.Amount, decimal.Zero, description)
			plan.addLine(models.AccountCodeAR, decimal.Zero, doc.Amount, description)
		} else {
			plan.addLine(models.AccountCodeAP, doc.Amount, decimal.Zero, description)
			plan.addLine(models.AccountCodeCash, decimal.Zero, doc.Amount, description)
		}

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}
		if err := markPosted(ctx, tx, doc, group); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostJournalEntry copies the user's balanced lines into a posting group.
func PostJournalEntry(ctx context.Context, id int, postingDate *time.Time) (*models.JournalEntry, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.JournalEntry
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.JournalEntry](ctx, tx, tenantId, id)
		if err != nil {
			return err
		}
		if doc.Status == models.DocumentStatusPosted {
			result = doc
			return nil
		}
		if doc.Status == models.DocumentStatusReversed {
			return ErrAlreadyReversed
		}
		if err := tx.WithContext(ctx).
			Where("tenant_id = ? AND journal_entry_id = ?", tenantId, doc.ID).
			Find(&doc.Lines).Error; err != nil {
			return err
		}

		date := resolvePostingDate(postingDate, doc.EntryDate)

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeJournalEntry,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeJournalEntry, doc.ID),
		}
		for _, line := range doc.Lines {
			description := line.Description
			if description == "" {
				description = doc.Memo
			}
			plan.Lines = append(plan.Lines, LedgerLine{
				AccountId:   line.AccountId,
				Debit:       line.DebitAmount,
				Credit:      line.CreditAmount,
				Description: description,
			})
		}

		group, _, err := CommitPlan(ctx, tx, tenantId, plan)
		if err != nil {
			return err
		}
		if err := markPosted(ctx, tx, doc, group); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
