package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
)

// AccountingPeriod is an administrative date range gatekeeping postings.
// Periods are monthly buckets, non-overlapping per tenant, auto-created OPEN
// the first time a posting date falls inside them.
type AccountingPeriod struct {
	ID          int          `gorm:"primary_key" json:"id"`
	TenantId    string       `gorm:"size:64;index;not null;index:uniq_period_start,unique" json:"tenant_id"`
	PeriodStart time.Time    `gorm:"not null;index:uniq_period_start,unique" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"not null" json:"period_end"`
	Status      PeriodStatus `gorm:"size:16;not null;default:'OPEN'" json:"status"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// MonthlyBucket returns the [start, end) month bucket containing date, in UTC.
func MonthlyBucket(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func ClosePeriod(ctx context.Context, id int) (*AccountingPeriod, error) {
	return setPeriodStatus(ctx, id, PeriodStatusClosed)
}

func ReopenPeriod(ctx context.Context, id int) (*AccountingPeriod, error) {
	return setPeriodStatus(ctx, id, PeriodStatusOpen)
}

func setPeriodStatus(ctx context.Context, id int, status PeriodStatus) (*AccountingPeriod, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	period, err := utils.FetchModel[AccountingPeriod](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(period).Update("Status", status).Error; err != nil {
		return nil, err
	}
	period.Status = status
	return period, nil
}

func PaginatePeriods(ctx context.Context, fromDate *time.Time, toDate *time.Time) ([]*AccountingPeriod, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if fromDate != nil {
		dbCtx = dbCtx.Where("period_start >= ?", *fromDate)
	}
	if toDate != nil {
		dbCtx = dbCtx.Where("period_start < ?", *toDate)
	}
	var periods []*AccountingPeriod
	if err := dbCtx.Order("period_start").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}
