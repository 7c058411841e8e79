package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestCommitPlanRejectsUnbalancedPlan(t *testing.T) {
	f := newFixture(t)
	plan := &LedgerPlan{
		SourceType:  models.SourceTypeJournalEntry,
		SourceId:    1,
		PostingDate: time.Now().UTC(),
	}
	plan.addLine(models.AccountCodeCash, dec("100"), decimal.Zero, "cash in")
	plan.addLine(models.AccountCodeSalesRevenue, decimal.Zero, dec("90"), "short credit")

	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		_, _, err := CommitPlan(f.ctx, tx, f.tenantId, plan)
		return err
	})
	if !errors.Is(err, ErrUnbalancedPosting) {
		t.Fatalf("expected ErrUnbalancedPosting, got %v", err)
	}
}

func TestPostWorkLogWritesBalancedGroup(t *testing.T) {
	f := newFixture(t)
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    time.Now().UTC(),
		WorkType:    "plowing",
		Units:       dec("20"),
		Rate:        dec("10"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}

	posted, err := PostWorkLog(f.ctx, log.ID, nil)
	if err != nil {
		t.Fatalf("PostWorkLog: %v", err)
	}
	if posted.Status != models.DocumentStatusPosted || posted.PostingGroupId == nil {
		t.Fatalf("work log not marked posted: %+v", posted)
	}

	entries := f.groupEntries(t, *posted.PostingGroupId)
	debit, credit := entryTotals(entries)
	if !debit.Equal(credit) || !debit.Equal(dec("200")) {
		t.Fatalf("group debit=%s credit=%s, want 200/200", debit, credit)
	}
}

func TestPostWorkLogTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    time.Now().UTC(),
		Units:       dec("5"),
		Rate:        dec("100"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}

	first, err := PostWorkLog(f.ctx, log.ID, nil)
	if err != nil {
		t.Fatalf("first post: %v", err)
	}
	second, err := PostWorkLog(f.ctx, log.ID, nil)
	if err != nil {
		t.Fatalf("second post: %v", err)
	}
	if *first.PostingGroupId != *second.PostingGroupId {
		t.Fatalf("second post produced a new group: %d vs %d", *first.PostingGroupId, *second.PostingGroupId)
	}

	var count int64
	if err := config.GetDB().Model(&models.PostingGroup{}).
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", f.tenantId, models.SourceTypeWorkLog, log.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 posting group, got %d", count)
	}
}

func TestLedgerEntriesAreImmutable(t *testing.T) {
	f := newFixture(t)
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    time.Now().UTC(),
		Units:       dec("1"),
		Rate:        dec("50"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}
	posted, err := PostWorkLog(f.ctx, log.ID, nil)
	if err != nil {
		t.Fatalf("PostWorkLog: %v", err)
	}
	entries := f.groupEntries(t, *posted.PostingGroupId)

	entry := entries[0]
	entry.DebitAmount = dec("1000")
	if err := config.GetDB().WithContext(f.ctx).Save(&entry).Error; err == nil {
		t.Fatal("expected ledger entry update to be rejected")
	}
	if err := config.GetDB().WithContext(f.ctx).Delete(&entries[0]).Error; err == nil {
		t.Fatal("expected ledger entry delete to be rejected")
	}
}

func TestPostJournalEntryUsesRawAccountIds(t *testing.T) {
	f := newFixture(t)
	cash, err := models.GetAccountByCode(config.GetDB(), f.ctx, f.tenantId, models.AccountCodeCash)
	if err != nil {
		t.Fatalf("GetAccountByCode: %v", err)
	}
	expense, err := models.GetAccountByCode(config.GetDB(), f.ctx, f.tenantId, models.AccountCodeFarmExpense)
	if err != nil {
		t.Fatalf("GetAccountByCode: %v", err)
	}

	entry, err := models.CreateJournalEntry(f.ctx, &models.NewJournalEntry{
		EntryDate: time.Now().UTC(),
		Memo:      "owner drawing correction",
		Lines: []models.NewJournalEntryLine{
			{AccountId: expense.ID, DebitAmount: dec("75.50")},
			{AccountId: cash.ID, CreditAmount: dec("75.50")},
		},
	})
	if err != nil {
		t.Fatalf("CreateJournalEntry: %v", err)
	}
	posted, err := PostJournalEntry(f.ctx, entry.ID, nil)
	if err != nil {
		t.Fatalf("PostJournalEntry: %v", err)
	}

	entries := f.groupEntries(t, *posted.PostingGroupId)
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	debit, credit := entryTotals(entries)
	if !debit.Equal(dec("75.5")) || !credit.Equal(dec("75.5")) {
		t.Fatalf("debit=%s credit=%s, want 75.50 each", debit, credit)
	}
}
