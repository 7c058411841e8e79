package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostGoodsReceipt receives purchased inputs into stock at actual cost and
// raises the supplier payable.
func PostGoodsReceipt(ctx context.Context, id int, postingDate *time.Time) (*models.GoodsReceipt, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.GoodsReceipt
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.GoodsReceipt](ctx, tx, tenantId, id)
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
			Where("tenant_id = ? AND goods_receipt_id = ?", tenantId, doc.ID).
			Find(&doc.Lines).Error; err != nil {
			return err
		}

		date := resolvePostingDate(postingDate, doc.ReceiptDate)
		total := doc.Total()
		description := fmt.Sprintf("Goods receipt #%d %s", doc.ID, doc.ReferenceNo)
		supplierId := doc.SupplierPartyId

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeGoodsReceipt,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeGoodsReceipt, doc.ID),
		}
		plan.addLine(models.AccountCodeInventoryInputs, total, decimal.Zero, description)
		plan.addLine(models.AccountCodeAP, decimal.Zero, total, description)
		plan.Allocations = append(plan.Allocations, AllocationLine{
			PartyId: &supplierId,
			Type:    models.AllocationTypeSupplierAP,
			Amount:  total,
			RuleSnapshot: map[string]interface{}{
				"reference_no": doc.ReferenceNo,
				"line_count":   len(doc.Lines),
			},
		})
		for _, line := range doc.Lines {
			lineValue := line.Qty.Mul(line.UnitCost).Round(2)
			plan.Movements = append(plan.Movements, MovementLine{
				WarehouseId:  doc.WarehouseId,
				ItemId:       line.ItemId,
				MovementType: models.MovementTypeReceipt,
				QtyDelta:     line.Qty,
				ValueDelta:   lineValue,
				UnitCost:     line.UnitCost,
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
