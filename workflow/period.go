package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"gorm.io/gorm"
)

var ErrPeriodClosed = errors.New("accounting period is closed")

// ensurePeriod returns the monthly period containing date, creating it OPEN
// on first use. The unique (tenant, period_start) index resolves concurrent
// creation; losers re-read the winner's row.
func ensurePeriod(ctx context.Context, tx *gorm.DB, tenantId string, date time.Time) (*models.AccountingPeriod, error) {
	start, end := models.MonthlyBucket(date)

	var period models.AccountingPeriod
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND period_start = ?", tenantId, start).
		First(&period).Error
	if err == nil {
		return &period, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	period = models.AccountingPeriod{
		TenantId:    tenantId,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      models.PeriodStatusOpen,
	}
	if createErr := tx.WithContext(ctx).Create(&period).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) || isDuplicateKeyErr(createErr) {
			err = tx.WithContext(ctx).
				Where("tenant_id = ? AND period_start = ?", tenantId, start).
				First(&period).Error
			if err != nil {
				return nil, err
			}
			return &period, nil
		}
		return nil, createErr
	}
	return &period, nil
}

// AssertPostingAllowed gates a new posting on the target period being OPEN.
func AssertPostingAllowed(ctx context.Context, tx *gorm.DB, tenantId string, postingDate time.Time) error {
	period, err := ensurePeriod(ctx, tx, tenantId, postingDate)
	if err != nil {
		return err
	}
	if period.Status != models.PeriodStatusOpen {
		return fmt.Errorf("%w: %s", ErrPeriodClosed, period.PeriodStart.Format("2006-01"))
	}
	return nil
}

// AssertReversalAllowed gates a reversal posting. A reversal dated the same
// day as the original it corrects is allowed even in a closed period, so an
// audit correction never strands; any other date goes through the normal
// open-period check.
func AssertReversalAllowed(ctx context.Context, tx *gorm.DB, tenantId string, reversalDate time.Time, originalDate time.Time) error {
	ry, rm, rd := reversalDate.UTC().Date()
	oy, om, od := originalDate.UTC().Date()
	if ry == oy && rm == om && rd == od {
		if _, err := ensurePeriod(ctx, tx, tenantId, reversalDate); err != nil {
			return err
		}
		return nil
	}
	return AssertPostingAllowed(ctx, tx, tenantId, reversalDate)
}
