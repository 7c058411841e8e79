package workflow

import (
	"errors"
	"testing"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
)

// seedSettledCycle drives a full season through real documents: 200 of
// shared labor, 32 of hari-only labor, a 10 unit harvest that pulls the 232
// of WIP into produce, a 1000 sale of that produce, and a 50 advance to the
// hari. The resulting waterfall at 10/40/60 percent splits 800 of pool
// profit into 80 kamdari, 288 landlord and 432 hari gross.
func seedSettledCycle(t *testing.T, f *testFixture) {
	t.Helper()

	shared, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day("2026-04-05"),
		Units:       dec("20"),
		Rate:        dec("10"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("create shared work log: %v", err)
	}
	if _, err := PostWorkLog(f.ctx, shared.ID, nil); err != nil {
		t.Fatalf("post shared work log: %v", err)
	}

	hariOnly, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day("2026-04-06"),
		Units:       dec("4"),
		Rate:        dec("8"),
		CostClass:   models.CostClassHariOnly,
	})
	if err != nil {
		t.Fatalf("create hari-only work log: %v", err)
	}
	if _, err := PostWorkLog(f.ctx, hariOnly.ID, nil); err != nil {
		t.Fatalf("post hari-only work log: %v", err)
	}

	harvest, err := models.CreateHarvest(f.ctx, &models.NewHarvest{
		CropCycleId: f.cycle.ID,
		WarehouseId: f.warehouse.ID,
		HarvestDate: day("2026-04-20"),
		Lines:       []models.NewHarvestLine{{ItemId: f.produce.ID, Qty: dec("10")}},
	})
	if err != nil {
		t.Fatalf("create harvest: %v", err)
	}
	if _, err := PostHarvest(f.ctx, harvest.ID, nil); err != nil {
		t.Fatalf("post harvest: %v", err)
	}

	cycleId := f.cycle.ID
	sale, err := models.CreateSale(f.ctx, &models.NewSale{
		BuyerPartyId: f.buyer.ID,
		WarehouseId:  f.warehouse.ID,
		CropCycleId:  &cycleId,
		SaleDate:     day("2026-04-25"),
		ItemId:       f.produce.ID,
		Qty:          dec("10"),
		UnitPrice:    dec("100"),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := PostSale(f.ctx, sale.ID, nil); err != nil {
		t.Fatalf("post sale: %v", err)
	}

	advance, err := models.CreateAdvance(f.ctx, &models.NewAdvance{
		PartyId:     f.hari.ID,
		CropCycleId: &cycleId,
		AdvanceDate: day("2026-04-10"),
		Amount:      dec("50"),
	})
	if err != nil {
		t.Fatalf("create advance: %v", err)
	}
	if _, err := PostAdvance(f.ctx, advance.ID, nil); err != nil {
		t.Fatalf("post advance: %v", err)
	}
}

func TestSettlementWaterfallPreview(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	preview, err := PreviewSettlement(f.ctx, f.cycle.ID)
	if err != nil {
		t.Fatalf("PreviewSettlement: %v", err)
	}

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"pool revenue", preview.PoolRevenue.String(), "1000"},
		{"shared costs", preview.SharedCosts.String(), "200"},
		{"pool profit", preview.PoolProfit.String(), "800"},
		{"kamdari", preview.KamdariAmount.String(), "80"},
		{"landlord", preview.LandlordAmount.String(), "288"},
		{"hari gross", preview.HariGross.String(), "432"},
		{"hari-only costs", preview.HariOnlyCosts.String(), "32"},
		{"hari net", preview.HariNet.String(), "400"},
		{"max offset", preview.MaxOffset.String(), "50"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

// Cost of goods sold stays out of the shared-cost pool; only allocation
// rows tagged as shared costs count against revenue.
func TestSaleCOGSNotCountedAsSharedCost(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	preview, err := PreviewSettlement(f.ctx, f.cycle.ID)
	if err != nil {
		t.Fatalf("PreviewSettlement: %v", err)
	}
	// The sale carried 232 of COGS out of produce inventory. Shared costs
	// stay at the 200 of shared labor.
	if !preview.SharedCosts.Equal(dec("200")) {
		t.Fatalf("shared costs = %s, want 200", preview.SharedCosts)
	}
}

func TestPostSettlementWithAdvanceOffset(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	offset := dec("50")
	settlement, err := PostSettlement(f.ctx, PostSettlementInput{
		CropCycleId:   f.cycle.ID,
		AdvanceOffset: &offset,
		CloseCycle:    true,
	})
	if err != nil {
		t.Fatalf("PostSettlement: %v", err)
	}
	if settlement.Status != models.DocumentStatusPosted || settlement.PostingGroupId == nil {
		t.Fatalf("settlement not posted: %+v", settlement)
	}
	if !settlement.KamdariAmount.Equal(dec("80")) ||
		!settlement.LandlordAmount.Equal(dec("288")) ||
		!settlement.HariNet.Equal(dec("400")) ||
		!settlement.AdvanceOffset.Equal(dec("50")) {
		t.Fatalf("snapshot amounts wrong: %+v", settlement)
	}

	entries := f.groupEntries(t, *settlement.PostingGroupId)
	debit, credit := entryTotals(entries)
	if !debit.Equal(credit) {
		t.Fatalf("settlement group unbalanced: %s vs %s", debit, credit)
	}
	// 768 distribution plus the 50 offset on each side.
	if !debit.Equal(dec("818")) {
		t.Fatalf("settlement total = %s, want 818", debit)
	}

	outstanding, err := models.GetOutstandingAdvance(f.ctx, f.tenantId, f.hari.ID)
	if err != nil {
		t.Fatalf("GetOutstandingAdvance: %v", err)
	}
	if !outstanding.IsZero() {
		t.Fatalf("advance outstanding after offset = %s, want 0", outstanding)
	}

	cycle, err := utils.FetchModel[models.CropCycle](f.ctx, f.tenantId, f.cycle.ID)
	if err != nil {
		t.Fatalf("fetch cycle: %v", err)
	}
	if cycle.Status != models.CropCycleStatusClosed {
		t.Fatalf("cycle status = %s, want CLOSED", cycle.Status)
	}
}

func TestSettleTwiceFails(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	if _, err := PostSettlement(f.ctx, PostSettlementInput{CropCycleId: f.cycle.ID}); err != nil {
		t.Fatalf("first settlement: %v", err)
	}
	if _, err := PostSettlement(f.ctx, PostSettlementInput{CropCycleId: f.cycle.ID}); !errors.Is(err, ErrCycleAlreadySettled) {
		t.Fatalf("expected ErrCycleAlreadySettled, got %v", err)
	}
}

func TestOffsetBeyondOutstandingFails(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	offset := dec("50.01")
	_, err := PostSettlement(f.ctx, PostSettlementInput{
		CropCycleId:   f.cycle.ID,
		AdvanceOffset: &offset,
	})
	if !errors.Is(err, ErrAdvanceOffsetDrift) {
		t.Fatalf("expected ErrAdvanceOffsetDrift, got %v", err)
	}
}

func TestLossMakingCycleRejected(t *testing.T) {
	f := newFixture(t)

	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day("2026-04-05"),
		Units:       dec("10"),
		Rate:        dec("10"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("create work log: %v", err)
	}
	if _, err := PostWorkLog(f.ctx, log.ID, nil); err != nil {
		t.Fatalf("post work log: %v", err)
	}

	// Costs with no revenue make every share negative.
	if _, err := PostSettlement(f.ctx, PostSettlementInput{CropCycleId: f.cycle.ID}); !errors.Is(err, ErrLossMakingCycle) {
		t.Fatalf("expected ErrLossMakingCycle, got %v", err)
	}
}

func TestReverseSettlementReopensCycle(t *testing.T) {
	f := newFixture(t)
	seedSettledCycle(t, f)

	offset := dec("50")
	settlement, err := PostSettlement(f.ctx, PostSettlementInput{
		CropCycleId:   f.cycle.ID,
		AdvanceOffset: &offset,
		CloseCycle:    true,
	})
	if err != nil {
		t.Fatalf("PostSettlement: %v", err)
	}

	if _, err := ReverseSettlement(f.ctx, settlement.ID, nil, "recipient disputed the split"); err != nil {
		t.Fatalf("ReverseSettlement: %v", err)
	}

	cycle, err := utils.FetchModel[models.CropCycle](f.ctx, f.tenantId, f.cycle.ID)
	if err != nil {
		t.Fatalf("fetch cycle: %v", err)
	}
	if cycle.Status != models.CropCycleStatusOpen {
		t.Fatalf("cycle status = %s, want OPEN after reversal", cycle.Status)
	}

	// The offset unwinds with the settlement.
	outstanding, err := models.GetOutstandingAdvance(f.ctx, f.tenantId, f.hari.ID)
	if err != nil {
		t.Fatalf("GetOutstandingAdvance: %v", err)
	}
	if !outstanding.Equal(dec("50")) {
		t.Fatalf("advance outstanding after reversal = %s, want 50", outstanding)
	}

	// A fresh run for the same cycle posts cleanly under its own key.
	second, err := PostSettlement(f.ctx, PostSettlementInput{CropCycleId: f.cycle.ID})
	if err != nil {
		t.Fatalf("re-settle after reversal: %v", err)
	}
	if second.PostingGroupId == nil || *second.PostingGroupId == *settlement.PostingGroupId {
		t.Fatalf("second settlement reused the first posting group")
	}
}
