package workflow

import (
	"errors"
	"testing"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"gorm.io/gorm"
)

func TestReversalMirrorsOriginalGroup(t *testing.T) {
	f := newFixture(t)
	date := day("2026-03-10")

	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    date,
		Units:       dec("8"),
		Rate:        dec("15"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}
	posted, err := PostWorkLog(f.ctx, log.ID, nil)
	if err != nil {
		t.Fatalf("PostWorkLog: %v", err)
	}

	reversal, err := ReverseWorkLog(f.ctx, posted.ID, nil, "wrong rate")
	if err != nil {
		t.Fatalf("ReverseWorkLog: %v", err)
	}
	if reversal.ReversalOfPostingGroupId == nil || *reversal.ReversalOfPostingGroupId != *posted.PostingGroupId {
		t.Fatalf("reversal does not reference the original group")
	}

	original := f.groupEntries(t, *posted.PostingGroupId)
	mirror := f.groupEntries(t, reversal.ID)
	if len(original) != len(mirror) {
		t.Fatalf("entry count mismatch: %d vs %d", len(original), len(mirror))
	}
	for i := range original {
		if original[i].AccountId != mirror[i].AccountId {
			t.Fatalf("entry %d account mismatch", i)
		}
		if !original[i].DebitAmount.Equal(mirror[i].CreditAmount) ||
			!original[i].CreditAmount.Equal(mirror[i].DebitAmount) {
			t.Fatalf("entry %d is not a debit/credit mirror", i)
		}
	}

	// The pair nets to zero on every account.
	debit, credit := entryTotals(append(original, mirror...))
	if !debit.Equal(credit) {
		t.Fatalf("combined totals unbalanced: %s vs %s", debit, credit)
	}

	after, err := utils.FetchModel[models.WorkLog](f.ctx, f.tenantId, posted.ID)
	if err != nil {
		t.Fatalf("fetch work log: %v", err)
	}
	if after.Status != models.DocumentStatusReversed {
		t.Fatalf("status = %s, want REVERSED", after.Status)
	}
	if after.ReversalPostingGroupId == nil || *after.ReversalPostingGroupId != reversal.ID {
		t.Fatalf("reversal posting group not recorded on the document")
	}
}

func TestReverseTwiceFails(t *testing.T) {
	f := newFixture(t)
	posted, err := f.postWorkLogOn(t, day("2026-03-12"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := ReverseWorkLog(f.ctx, posted.ID, nil, "dup"); err != nil {
		t.Fatalf("first reversal: %v", err)
	}
	if _, err := ReverseWorkLog(f.ctx, posted.ID, nil, "dup again"); !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}
}

func TestReverseDraftFails(t *testing.T) {
	f := newFixture(t)
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day("2026-03-13"),
		Units:       dec("1"),
		Rate:        dec("10"),
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}
	if _, err := ReverseWorkLog(f.ctx, log.ID, nil, "never posted"); !errors.Is(err, ErrNotPosted) {
		t.Fatalf("expected ErrNotPosted, got %v", err)
	}
}

func TestReversalOfReversalFails(t *testing.T) {
	f := newFixture(t)
	posted, err := f.postWorkLogOn(t, day("2026-03-14"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	reversal, err := ReverseWorkLog(f.ctx, posted.ID, nil, "undo")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}

	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		_, err := ReversePostingGroup(f.ctx, tx, f.tenantId, reversal, reversal.PostingDate, "undo the undo")
		return err
	})
	if !errors.Is(err, ErrReversalOfReversal) {
		t.Fatalf("expected ErrReversalOfReversal, got %v", err)
	}
}

func TestReversePostingGroupIsIdempotent(t *testing.T) {
	f := newFixture(t)
	posted, err := f.postWorkLogOn(t, day("2026-03-15"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	first, err := ReverseWorkLog(f.ctx, posted.ID, nil, "once")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}

	original, err := loadGroup(f.ctx, config.GetDB(), f.tenantId, *posted.PostingGroupId)
	if err != nil {
		t.Fatalf("loadGroup: %v", err)
	}
	var again *models.PostingGroup
	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		again, err = ReversePostingGroup(f.ctx, tx, f.tenantId, original, original.PostingDate, "twice")
		return err
	})
	if err != nil {
		t.Fatalf("second ReversePostingGroup: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("second call posted a new group %d, want %d", again.ID, first.ID)
	}
}

func TestReverseGoodsReceiptAfterConsumptionFails(t *testing.T) {
	f := newFixture(t)
	receipt := f.receiveStock(t, f.inputItem, "10", "5", "2026-03-05")

	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &f.cycle.ID,
		IssueDate:   day("2026-03-06"),
		Qty:         dec("8"),
		CostClass:   models.CostClassShared,
		Reason:      "field application",
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	if _, err := PostInventoryIssue(f.ctx, issue.ID, nil); err != nil {
		t.Fatalf("PostInventoryIssue: %v", err)
	}

	// Only 2 units remain, so withdrawing the 10 received must fail.
	if _, err := ReverseGoodsReceipt(f.ctx, receipt.ID, nil, "wrong supplier"); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("2")) {
		t.Fatalf("stock changed by failed reversal: %s", balance.QtyOnHand)
	}
}

func TestReverseInventoryIssueRestoresStockAtValue(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "20", "3", "2026-03-05")

	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &f.cycle.ID,
		IssueDate:   day("2026-03-07"),
		Qty:         dec("12"),
		CostClass:   models.CostClassShared,
		Reason:      "field application",
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	posted, err := PostInventoryIssue(f.ctx, issue.ID, nil)
	if err != nil {
		t.Fatalf("PostInventoryIssue: %v", err)
	}

	if _, err := ReverseInventoryIssue(f.ctx, posted.ID, nil, "issued twice"); err != nil {
		t.Fatalf("ReverseInventoryIssue: %v", err)
	}

	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("20")) || !balance.ValueOnHand.Equal(dec("60")) {
		t.Fatalf("stock after reversal = %s qty / %s value, want 20 / 60",
			balance.QtyOnHand, balance.ValueOnHand)
	}
}

func TestReverseOnClosedCycleFails(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	extra, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day("2026-04-07"),
		Units:       dec("5"),
		Rate:        dec("10"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("create work log: %v", err)
	}
	if _, err := PostWorkLog(f.ctx, extra.ID, nil); err != nil {
		t.Fatalf("post work log: %v", err)
	}

	settlement, err := PostSettlement(f.ctx, PostSettlementInput{
		CropCycleId: f.cycle.ID,
		CloseCycle:  true,
	})
	if err != nil {
		t.Fatalf("PostSettlement: %v", err)
	}

	if _, err := ReverseWorkLog(f.ctx, extra.ID, nil, "entered twice"); !errors.Is(err, ErrReversalCycleClosed) {
		t.Fatalf("expected ErrReversalCycleClosed, got %v", err)
	}

	// Reversing the settlement is the sanctioned way back in; once the
	// cycle reopens the same reversal goes through.
	if _, err := ReverseSettlement(f.ctx, settlement.ID, nil, "split disputed"); err != nil {
		t.Fatalf("ReverseSettlement: %v", err)
	}
	if _, err := ReverseWorkLog(f.ctx, extra.ID, nil, "entered twice"); err != nil {
		t.Fatalf("reverse after reopen: %v", err)
	}

	log, err := utils.FetchModel[models.WorkLog](f.ctx, f.tenantId, extra.ID)
	if err != nil {
		t.Fatalf("fetch work log: %v", err)
	}
	if log.Status != models.DocumentStatusReversed {
		t.Fatalf("work log status = %s, want REVERSED", log.Status)
	}
}
