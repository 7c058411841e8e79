package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
)

func TestMovingAverageAfterReceiptAndIssue(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "100", "10", "2026-08-01")

	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("100")) || !balance.ValueOnHand.Equal(dec("1000")) || !balance.WacCost.Equal(dec("10")) {
		t.Fatalf("after receipt: qty=%s value=%s wac=%s", balance.QtyOnHand, balance.ValueOnHand, balance.WacCost)
	}

	cycleId := f.cycle.ID
	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &cycleId,
		IssueDate:   day("2026-08-02"),
		Qty:         dec("40"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	if _, err := PostInventoryIssue(f.ctx, issue.ID, nil); err != nil {
		t.Fatalf("PostInventoryIssue: %v", err)
	}

	balance = f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("60")) || !balance.ValueOnHand.Equal(dec("600")) || !balance.WacCost.Equal(dec("10")) {
		t.Fatalf("after issue: qty=%s value=%s wac=%s, want 60/600/10", balance.QtyOnHand, balance.ValueOnHand, balance.WacCost)
	}
}

func TestIssueBeyondOnHandFails(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "5", "20", "2026-08-01")

	cycleId := f.cycle.ID
	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &cycleId,
		IssueDate:   day("2026-08-02"),
		Qty:         dec("6"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	if _, err := PostInventoryIssue(f.ctx, issue.ID, nil); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("5")) {
		t.Fatalf("failed issue must not move stock, qty=%s", balance.QtyOnHand)
	}
}

func TestFullIssueDrainsValueWithoutResidual(t *testing.T) {
	f := newFixture(t)
	// Line value rounds to 1.00 over 3 units; per-unit pricing would strand
	// a cent on the last issue.
	f.receiveStock(t, f.inputItem, "3", "0.3333", "2026-08-01")

	cycleId := f.cycle.ID
	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &cycleId,
		IssueDate:   day("2026-08-02"),
		Qty:         dec("3"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	if _, err := PostInventoryIssue(f.ctx, issue.ID, nil); err != nil {
		t.Fatalf("PostInventoryIssue: %v", err)
	}

	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.IsZero() || !balance.ValueOnHand.IsZero() {
		t.Fatalf("full issue left residual: qty=%s value=%s", balance.QtyOnHand, balance.ValueOnHand)
	}
}

func TestStockTransferMovesQuantityAtValue(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "10", "7", "2026-08-01")

	second, err := models.CreateWarehouse(f.ctx, &models.NewWarehouse{Name: "Field Store"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	transfer, err := models.CreateStockTransfer(f.ctx, &models.NewStockTransfer{
		FromWarehouseId: f.warehouse.ID,
		ToWarehouseId:   second.ID,
		ItemId:          f.inputItem.ID,
		TransferDate:    day("2026-08-03"),
		Qty:             dec("4"),
	})
	if err != nil {
		t.Fatalf("CreateStockTransfer: %v", err)
	}
	if _, err := PostStockTransfer(f.ctx, transfer.ID, nil); err != nil {
		t.Fatalf("PostStockTransfer: %v", err)
	}

	from := f.stockBalance(t, f.inputItem)
	if !from.QtyOnHand.Equal(dec("6")) || !from.ValueOnHand.Equal(dec("42")) {
		t.Fatalf("source after transfer: qty=%s value=%s, want 6/42", from.QtyOnHand, from.ValueOnHand)
	}
}

func TestRebuildStockBalancesReplaysMovements(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "50", "2", "2026-08-01")

	cycleId := f.cycle.ID
	issue, err := models.CreateInventoryIssue(f.ctx, &models.NewInventoryIssue{
		WarehouseId: f.warehouse.ID,
		ItemId:      f.inputItem.ID,
		CropCycleId: &cycleId,
		IssueDate:   day("2026-08-02"),
		Qty:         dec("20"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateInventoryIssue: %v", err)
	}
	if _, err := PostInventoryIssue(f.ctx, issue.ID, nil); err != nil {
		t.Fatalf("PostInventoryIssue: %v", err)
	}

	if err := RebuildStockBalances(f.ctx, f.tenantId); err != nil {
		t.Fatalf("RebuildStockBalances: %v", err)
	}
	balance := f.stockBalance(t, f.inputItem)
	if !balance.QtyOnHand.Equal(dec("30")) || !balance.ValueOnHand.Equal(dec("60")) || !balance.WacCost.Equal(dec("2")) {
		t.Fatalf("after rebuild: qty=%s value=%s wac=%s, want 30/60/2", balance.QtyOnHand, balance.ValueOnHand, balance.WacCost)
	}
}

func TestComputeWACAtDateReplaysHistory(t *testing.T) {
	f := newFixture(t)
	f.receiveStock(t, f.inputItem, "10", "5", "2026-08-01")
	f.receiveStock(t, f.inputItem, "10", "15", "2026-08-10")

	early, err := ComputeWACAtDate(f.ctx, f.tenantId, f.warehouse.ID, f.inputItem.ID, day("2026-08-05"))
	if err != nil {
		t.Fatalf("ComputeWACAtDate: %v", err)
	}
	if !early.Equal(dec("5")) {
		t.Fatalf("wac at 08-05 = %s, want 5", early)
	}
	late, err := ComputeWACAtDate(f.ctx, f.tenantId, f.warehouse.ID, f.inputItem.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("ComputeWACAtDate: %v", err)
	}
	if !late.Equal(dec("10")) {
		t.Fatalf("wac now = %s, want 10", late)
	}
}

func (f *testFixture) accrueCycleCost(t *testing.T, units, rate, date string) {
	t.Helper()
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    day(date),
		Units:       dec(units),
		Rate:        dec(rate),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("create work log: %v", err)
	}
	if _, err := PostWorkLog(f.ctx, log.ID, nil); err != nil {
		t.Fatalf("post work log: %v", err)
	}
}

func (f *testFixture) harvestProduce(t *testing.T, qty, date string) *models.Harvest {
	t.Helper()
	harvest, err := models.CreateHarvest(f.ctx, &models.NewHarvest{
		CropCycleId: f.cycle.ID,
		WarehouseId: f.warehouse.ID,
		HarvestDate: day(date),
		Lines:       []models.NewHarvestLine{{ItemId: f.produce.ID, Qty: dec(qty)}},
	})
	if err != nil {
		t.Fatalf("CreateHarvest: %v", err)
	}
	posted, err := PostHarvest(f.ctx, harvest.ID, nil)
	if err != nil {
		t.Fatalf("PostHarvest: %v", err)
	}
	return posted
}

func TestBackDatedSaleCostsAtItsOwnDate(t *testing.T) {
	f := newFixture(t)

	// Two harvests leave two cost layers: 10 units at 10, then 10 more at
	// 30, for a live average of 20.
	f.accrueCycleCost(t, "10", "10", "2026-04-01")
	f.harvestProduce(t, "10", "2026-04-02")
	f.accrueCycleCost(t, "10", "30", "2026-04-10")
	f.harvestProduce(t, "10", "2026-04-11")

	cycleId := f.cycle.ID
	sale, err := models.CreateSale(f.ctx, &models.NewSale{
		BuyerPartyId: f.buyer.ID,
		WarehouseId:  f.warehouse.ID,
		CropCycleId:  &cycleId,
		SaleDate:     day("2026-04-05"),
		ItemId:       f.produce.ID,
		Qty:          dec("5"),
		UnitPrice:    dec("50"),
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	posted, err := PostSale(f.ctx, sale.ID, nil)
	if err != nil {
		t.Fatalf("PostSale: %v", err)
	}

	// Cost comes from the 10/unit average in effect on the sale date, not
	// the 20/unit live one.
	var movement models.StockMovement
	err = config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND posting_group_id = ? AND movement_type = ?",
			f.tenantId, *posted.PostingGroupId, models.MovementTypeSale).
		First(&movement).Error
	if err != nil {
		t.Fatalf("fetch sale movement: %v", err)
	}
	if !movement.UnitCostSnapshot.Equal(dec("10")) || !movement.ValueDelta.Equal(dec("-50")) {
		t.Fatalf("sale movement cost=%s value=%s, want 10 / -50", movement.UnitCostSnapshot, movement.ValueDelta)
	}

	balance := f.stockBalance(t, f.produce)
	if !balance.QtyOnHand.Equal(dec("15")) || !balance.ValueOnHand.Equal(dec("350")) {
		t.Fatalf("after sale: qty=%s value=%s, want 15/350", balance.QtyOnHand, balance.ValueOnHand)
	}
}

func TestBackDatedHarvestIgnoresLaterCosts(t *testing.T) {
	f := newFixture(t)

	f.accrueCycleCost(t, "10", "10", "2026-04-01")
	f.accrueCycleCost(t, "4", "11", "2026-04-20")

	// Dated between the two cost entries, the harvest only drains the
	// first one.
	f.harvestProduce(t, "10", "2026-04-10")

	balance := f.stockBalance(t, f.produce)
	if !balance.QtyOnHand.Equal(dec("10")) || !balance.ValueOnHand.Equal(dec("100")) || !balance.WacCost.Equal(dec("10")) {
		t.Fatalf("after harvest: qty=%s value=%s wac=%s, want 10/100/10", balance.QtyOnHand, balance.ValueOnHand, balance.WacCost)
	}
}
