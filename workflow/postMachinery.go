package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostMachineryJob books outside machine work as receivable income.
func PostMachineryJob(ctx context.Context, id int, postingDate *time.Time) (*models.MachineryJob, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.MachineryJob
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryJob](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.JobDate)
		amount := doc.Amount()
		description := fmt.Sprintf("Machinery job #%d", doc.ID)
		machineId := doc.MachineId
		customerId := doc.CustomerPartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeMachineryJob,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeMachineryJob, doc.ID),
		}
		plan.addLine(models.AccountCodeAR, amount, decimal.Zero, description)
		plan.addLine(models.AccountCodeMachineryIncome, decimal.Zero, amount, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			PartyId:   &customerId,
			MachineId: &machineId,
			Type:      models.AllocationTypeMachineJob,
			Amount:    amount,
			RuleSnapshot: map[string]interface{}{
				"hours": doc.Hours.String(),
				"rate":  doc.Rate.String(),
			},
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

// PostMachineryService books machine maintenance as a supplier payable.
func PostMachineryService(ctx context.Context, id int, postingDate *time.Time) (*models.MachineryService, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.MachineryService
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryService](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.ServiceDate)
		description := fmt.Sprintf("Machinery service #%d %s", doc.ID, doc.Description)
		machineId := doc.MachineId
		supplierId := doc.SupplierPartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeMachineryService,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeMachineryService, doc.ID),
		}
		plan.addLine(models.AccountCodeMachineryExpense, doc.Amount, decimal.Zero, description)
		plan.addLine(models.AccountCodeAP, decimal.Zero, doc.Amount, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			PartyId:   &supplierId,
			MachineId: &machineId,
			Type:      models.AllocationTypeSupplierAP,
			Amount:    doc.Amount,
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

// PostMachineryCharge spreads a machine's internal use across the crop
// cycles that used it, proportional to hours, against machinery income.
func PostMachineryCharge(ctx context.Context, id int, postingDate *time.Time) (*models.MachineryCharge, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.MachineryCharge
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.MachineryCharge](ctx, tx, tenantId, id)
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
			Where("tenant_id = ? AND machinery_charge_id = ?", tenantId, doc.ID).
			Find(&doc.Lines).Error; err != nil {
			return err
		}

		date := resolvePostingDate(postingDate, doc.ChargeDate)
		for _, line := range doc.Lines {
			if err := assertOpenCycle(ctx, tx, tenantId, line.CropCycleId, date); err != nil {
				return err
			}
		}

		total := doc.Total()
		weights := make([]decimal.Decimal, len(doc.Lines))
		for i, line := range doc.Lines {
			weights[i] = line.Hours
		}
		shares, err := AllocateProportionally(total, weights)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Machinery charge #%d", doc.ID)
		machineId := doc.MachineId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeMachineryCharge,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeMachineryCharge, doc.ID),
		}
		plan.addLine(models.AccountCodeWIPCrop, total, decimal.Zero, description)
		plan.addLine(models.AccountCodeMachineryIncome, decimal.Zero, total, description)
		for i := range doc.Lines {
			cycleId := doc.Lines[i].CropCycleId
			plan.Allocations = append(plan.Allocations, AllocationLine{
				CropCycleId: &cycleId,
				MachineId:   &machineId,
				Type:        models.AllocationTypeSharedCost,
				Amount:      shares[i],
				RuleSnapshot: map[string]interface{}{
					"hours": doc.Lines[i].Hours.String(),
					"rate":  doc.Rate.String(),
				},
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
