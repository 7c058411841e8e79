package workflow

import (
	"testing"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
)

func TestMachineryChargeSpreadsAcrossCycles(t *testing.T) {
	f := newFixture(t)

	machine, err := models.CreateMachine(f.ctx, &models.NewMachine{Name: "Tractor", HourlyRate: dec("50")})
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}
	second, err := models.CreateCropCycle(f.ctx, &models.NewCropCycle{
		ProjectId: f.project.ID,
		Name:      "Rice 2026",
		CropName:  "Rice",
	})
	if err != nil {
		t.Fatalf("create second cycle: %v", err)
	}
	third, err := models.CreateCropCycle(f.ctx, &models.NewCropCycle{
		ProjectId: f.project.ID,
		Name:      "Maize 2026",
		CropName:  "Maize",
	})
	if err != nil {
		t.Fatalf("create third cycle: %v", err)
	}

	// Equal hours at this rate leave a remainder cent that lands on the
	// last cycle.
	rate := dec("33.3333")
	charge, err := models.CreateMachineryCharge(f.ctx, &models.NewMachineryCharge{
		MachineId:  machine.ID,
		ChargeDate: day("2026-05-02"),
		Rate:       &rate,
		Lines: []models.NewMachineryChargeLine{
			{CropCycleId: f.cycle.ID, Hours: dec("1")},
			{CropCycleId: second.ID, Hours: dec("1")},
			{CropCycleId: third.ID, Hours: dec("1")},
		},
	})
	if err != nil {
		t.Fatalf("CreateMachineryCharge: %v", err)
	}
	posted, err := PostMachineryCharge(f.ctx, charge.ID, nil)
	if err != nil {
		t.Fatalf("PostMachineryCharge: %v", err)
	}

	entries := f.groupEntries(t, *posted.PostingGroupId)
	debit, credit := entryTotals(entries)
	if !debit.Equal(dec("100")) || !credit.Equal(dec("100")) {
		t.Fatalf("charge totals = %s / %s, want 100 / 100", debit, credit)
	}

	var allocations []models.AllocationRow
	if err := config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND posting_group_id = ?", f.tenantId, *posted.PostingGroupId).
		Order("id").
		Find(&allocations).Error; err != nil {
		t.Fatalf("fetch allocations: %v", err)
	}
	if len(allocations) != 3 {
		t.Fatalf("allocation count = %d, want 3", len(allocations))
	}
	want := []string{"33.33", "33.33", "33.34"}
	for i, a := range allocations {
		if !a.Amount.Equal(dec(want[i])) {
			t.Fatalf("allocation %d = %s, want %s", i, a.Amount, want[i])
		}
	}

	// The spread feeds each cycle's WIP, so a later harvest of the third
	// cycle would pull exactly its share.
	wip, err := cycleWIPBalance(f.ctx, config.GetDB(), f.tenantId, third.ID, day("2026-05-02"))
	if err != nil {
		t.Fatalf("cycleWIPBalance: %v", err)
	}
	if !wip.Equal(dec("33.34")) {
		t.Fatalf("third cycle WIP = %s, want 33.34", wip)
	}
}

func TestMachineryJobBooksReceivableIncome(t *testing.T) {
	f := newFixture(t)

	machine, err := models.CreateMachine(f.ctx, &models.NewMachine{Name: "Thresher", HourlyRate: dec("80")})
	if err != nil {
		t.Fatalf("CreateMachine: %v", err)
	}
	job, err := models.CreateMachineryJob(f.ctx, &models.NewMachineryJob{
		MachineId:       machine.ID,
		CustomerPartyId: f.buyer.ID,
		JobDate:         day("2026-05-03"),
		Hours:           dec("2.5"),
		Rate:            dec("80"),
	})
	if err != nil {
		t.Fatalf("CreateMachineryJob: %v", err)
	}
	posted, err := PostMachineryJob(f.ctx, job.ID, nil)
	if err != nil {
		t.Fatalf("PostMachineryJob: %v", err)
	}

	entries := f.groupEntries(t, *posted.PostingGroupId)
	debit, credit := entryTotals(entries)
	if !debit.Equal(dec("200")) || !credit.Equal(dec("200")) {
		t.Fatalf("job totals = %s / %s, want 200 / 200", debit, credit)
	}
}
