package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
)

func (f *testFixture) periodFor(t *testing.T, date time.Time) *models.AccountingPeriod {
	t.Helper()
	start, _ := models.MonthlyBucket(date)
	var period models.AccountingPeriod
	err := config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND period_start = ?", f.tenantId, start).
		First(&period).Error
	if err != nil {
		t.Fatalf("fetch period for %s: %v", start.Format("2006-01"), err)
	}
	return &period
}

func (f *testFixture) postWorkLogOn(t *testing.T, date time.Time) (*models.WorkLog, error) {
	t.Helper()
	log, err := models.CreateWorkLog(f.ctx, &models.NewWorkLog{
		CropCycleId: f.cycle.ID,
		PartyId:     f.hari.ID,
		WorkDate:    date,
		Units:       dec("2"),
		Rate:        dec("25"),
		CostClass:   models.CostClassShared,
	})
	if err != nil {
		t.Fatalf("CreateWorkLog: %v", err)
	}
	return PostWorkLog(f.ctx, log.ID, &date)
}

func TestPostingIntoClosedPeriodFails(t *testing.T) {
	f := newFixture(t)
	date := day("2026-07-15")

	// First posting auto-creates the period OPEN.
	if _, err := f.postWorkLogOn(t, date); err != nil {
		t.Fatalf("initial post: %v", err)
	}
	period := f.periodFor(t, date)
	if _, err := models.ClosePeriod(f.ctx, period.ID); err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}

	if _, err := f.postWorkLogOn(t, day("2026-07-20")); !errors.Is(err, ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}

	if _, err := models.ReopenPeriod(f.ctx, period.ID); err != nil {
		t.Fatalf("ReopenPeriod: %v", err)
	}
	if _, err := f.postWorkLogOn(t, day("2026-07-21")); err != nil {
		t.Fatalf("post after reopen: %v", err)
	}
}

func TestSameDayReversalBypassesClosedPeriod(t *testing.T) {
	f := newFixture(t)
	date := day("2026-06-10")

	posted, err := f.postWorkLogOn(t, date)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	period := f.periodFor(t, date)
	if _, err := models.ClosePeriod(f.ctx, period.ID); err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}

	// Default reversal date is the original posting date, so the closed
	// period does not block the correction.
	group, err := ReverseWorkLog(f.ctx, posted.ID, nil, "duplicate entry")
	if err != nil {
		t.Fatalf("same-day reversal: %v", err)
	}
	if group.SourceType != models.SourceTypeReversal {
		t.Fatalf("reversal group source type = %s", group.SourceType)
	}
}

func TestDifferentDayReversalHitsPeriodGate(t *testing.T) {
	f := newFixture(t)
	date := day("2026-05-10")

	posted, err := f.postWorkLogOn(t, date)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	period := f.periodFor(t, date)
	if _, err := models.ClosePeriod(f.ctx, period.ID); err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}

	later := day("2026-05-20")
	if _, err := ReverseWorkLog(f.ctx, posted.ID, &later, "late correction"); !errors.Is(err, ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed for off-day reversal, got %v", err)
	}
}
