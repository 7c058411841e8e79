package workflow

import (
	"errors"
	"testing"

	"github.com/agrifocus/farmbooks_backend/models"
)

// seedOpenSales stocks some produce through an adjustment and posts two
// sales to the buyer: 100 on the 1st and 80 on the 2nd. Adjusted-in stock
// carries zero unit cost, so the sales book no cost of goods sold.
func seedOpenSales(t *testing.T, f *testFixture) (*models.Sale, *models.Sale) {
	t.Helper()

	adjustment, err := models.CreateInventoryAdjustment(f.ctx, &models.NewInventoryAdjustment{
		WarehouseId:    f.warehouse.ID,
		ItemId:         f.produce.ID,
		AdjustmentDate: day("2026-03-30"),
		QtyDelta:       dec("10"),
		Reason:         "opening count",
	})
	if err != nil {
		t.Fatalf("create adjustment: %v", err)
	}
	if _, err := PostInventoryAdjustment(f.ctx, adjustment.ID, nil); err != nil {
		t.Fatalf("post adjustment: %v", err)
	}

	makeSale := func(date, qty, price string) *models.Sale {
		sale, err := models.CreateSale(f.ctx, &models.NewSale{
			BuyerPartyId: f.buyer.ID,
			WarehouseId:  f.warehouse.ID,
			SaleDate:     day(date),
			ItemId:       f.produce.ID,
			Qty:          dec(qty),
			UnitPrice:    dec(price),
		})
		if err != nil {
			t.Fatalf("create sale: %v", err)
		}
		posted, err := PostSale(f.ctx, sale.ID, nil)
		if err != nil {
			t.Fatalf("post sale: %v", err)
		}
		return posted
	}

	first := makeSale("2026-04-01", "1", "100")
	second := makeSale("2026-04-02", "1", "80")
	return first, second
}

func (f *testFixture) makePayment(t *testing.T, amount, date string) *models.Payment {
	t.Helper()
	payment, err := models.CreatePayment(f.ctx, &models.NewPayment{
		PartyId:     f.buyer.ID,
		Direction:   models.PaymentDirectionIn,
		PaymentDate: day(date),
		Amount:      dec(amount),
		Method:      "CASH",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	posted, err := PostPayment(f.ctx, payment.ID, nil)
	if err != nil {
		t.Fatalf("post payment: %v", err)
	}
	return posted
}

func TestAllocatePaymentFIFOSplitsOnBoundary(t *testing.T) {
	f := newFixture(t)
	first, second := seedOpenSales(t, f)

	payment := f.makePayment(t, "150", "2026-04-10")
	allocations, err := AllocatePaymentFIFO(f.ctx, payment.ID)
	if err != nil {
		t.Fatalf("AllocatePaymentFIFO: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("allocation count = %d, want 2", len(allocations))
	}
	if allocations[0].DocumentId != first.ID || !allocations[0].Amount.Equal(dec("100")) {
		t.Fatalf("first allocation = doc %d amount %s", allocations[0].DocumentId, allocations[0].Amount)
	}
	if allocations[1].DocumentId != second.ID || !allocations[1].Amount.Equal(dec("50")) {
		t.Fatalf("second allocation = doc %d amount %s", allocations[1].DocumentId, allocations[1].Amount)
	}

	outstanding, err := models.GetSaleOutstanding(f.ctx, f.tenantId, second)
	if err != nil {
		t.Fatalf("GetSaleOutstanding: %v", err)
	}
	if !outstanding.Equal(dec("30")) {
		t.Fatalf("second sale outstanding = %s, want 30", outstanding)
	}
}

func TestAllocatePaymentFIFOOverpaymentRollsBack(t *testing.T) {
	f := newFixture(t)
	seedOpenSales(t, f)

	payment := f.makePayment(t, "200", "2026-04-10")
	if _, err := AllocatePaymentFIFO(f.ctx, payment.ID); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}

	// The failed run leaves nothing behind.
	allocated, err := models.GetPaymentAllocatedAmount(f.ctx, f.tenantId, payment.ID)
	if err != nil {
		t.Fatalf("GetPaymentAllocatedAmount: %v", err)
	}
	if !allocated.IsZero() {
		t.Fatalf("allocated after rollback = %s, want 0", allocated)
	}
}

func TestAllocatePaymentFIFORequiresPostedPayment(t *testing.T) {
	f := newFixture(t)
	seedOpenSales(t, f)

	payment, err := models.CreatePayment(f.ctx, &models.NewPayment{
		PartyId:     f.buyer.ID,
		Direction:   models.PaymentDirectionIn,
		PaymentDate: day("2026-04-10"),
		Amount:      dec("50"),
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := AllocatePaymentFIFO(f.ctx, payment.ID); !errors.Is(err, ErrPaymentNotPosted) {
		t.Fatalf("expected ErrPaymentNotPosted, got %v", err)
	}
}

func TestManualAllocationOverOutstandingFails(t *testing.T) {
	f := newFixture(t)
	_, second := seedOpenSales(t, f)

	payment := f.makePayment(t, "150", "2026-04-10")
	_, err := AllocatePaymentManual(f.ctx, payment.ID, []ManualAllocationLine{
		{DocumentId: second.ID, Amount: dec("100")},
	})
	if !errors.Is(err, ErrOverAllocation) {
		t.Fatalf("expected ErrOverAllocation, got %v", err)
	}
}

func TestManualAllocationOverUnappliedFails(t *testing.T) {
	f := newFixture(t)
	first, second := seedOpenSales(t, f)

	payment := f.makePayment(t, "50", "2026-04-10")
	_, err := AllocatePaymentManual(f.ctx, payment.ID, []ManualAllocationLine{
		{DocumentId: first.ID, Amount: dec("40")},
		{DocumentId: second.ID, Amount: dec("20")},
	})
	if !errors.Is(err, ErrAllocationExceeded) {
		t.Fatalf("expected ErrAllocationExceeded, got %v", err)
	}
}

func TestManualAllocationAppliesChosenAmounts(t *testing.T) {
	f := newFixture(t)
	first, second := seedOpenSales(t, f)

	payment := f.makePayment(t, "120", "2026-04-10")
	allocations, err := AllocatePaymentManual(f.ctx, payment.ID, []ManualAllocationLine{
		{DocumentId: second.ID, Amount: dec("80")},
		{DocumentId: first.ID, Amount: dec("40")},
	})
	if err != nil {
		t.Fatalf("AllocatePaymentManual: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("allocation count = %d, want 2", len(allocations))
	}

	outstanding, err := models.GetSaleOutstanding(f.ctx, f.tenantId, first)
	if err != nil {
		t.Fatalf("GetSaleOutstanding: %v", err)
	}
	if !outstanding.Equal(dec("60")) {
		t.Fatalf("first sale outstanding = %s, want 60", outstanding)
	}
}

func TestUnapplyAllocationRestoresOutstanding(t *testing.T) {
	f := newFixture(t)
	first, _ := seedOpenSales(t, f)

	payment := f.makePayment(t, "100", "2026-04-10")
	allocations, err := AllocatePaymentManual(f.ctx, payment.ID, []ManualAllocationLine{
		{DocumentId: first.ID, Amount: dec("100")},
	})
	if err != nil {
		t.Fatalf("AllocatePaymentManual: %v", err)
	}

	voided, err := UnapplyAllocation(f.ctx, allocations[0].ID)
	if err != nil {
		t.Fatalf("UnapplyAllocation: %v", err)
	}
	if voided.Status != models.AllocationStatusVoid {
		t.Fatalf("allocation status = %s, want VOID", voided.Status)
	}

	outstanding, err := models.GetSaleOutstanding(f.ctx, f.tenantId, first)
	if err != nil {
		t.Fatalf("GetSaleOutstanding: %v", err)
	}
	if !outstanding.Equal(dec("100")) {
		t.Fatalf("outstanding after unapply = %s, want 100", outstanding)
	}

	// The freed amount can be reapplied.
	if _, err := AllocatePaymentFIFO(f.ctx, payment.ID); err != nil {
		t.Fatalf("reallocate after unapply: %v", err)
	}
}

func TestUnapplyPaymentAllocationsVoidsAll(t *testing.T) {
	f := newFixture(t)
	seedOpenSales(t, f)

	payment := f.makePayment(t, "150", "2026-04-10")
	if _, err := AllocatePaymentFIFO(f.ctx, payment.ID); err != nil {
		t.Fatalf("AllocatePaymentFIFO: %v", err)
	}

	voided, err := UnapplyPaymentAllocations(f.ctx, payment.ID)
	if err != nil {
		t.Fatalf("UnapplyPaymentAllocations: %v", err)
	}
	if len(voided) != 2 {
		t.Fatalf("voided count = %d, want 2", len(voided))
	}
	allocated, err := models.GetPaymentAllocatedAmount(f.ctx, f.tenantId, payment.ID)
	if err != nil {
		t.Fatalf("GetPaymentAllocatedAmount: %v", err)
	}
	if !allocated.IsZero() {
		t.Fatalf("allocated after unapply = %s, want 0", allocated)
	}
}
