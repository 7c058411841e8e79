package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// inventoryAccountFor picks the inventory account matching the item class.
func inventoryAccountFor(item *models.Item) string {
	if item.Type == models.ItemTypeProduce {
		return models.AccountCodeInventoryProduce
	}
	return models.AccountCodeInventoryInputs
}

func fetchItem(ctx context.Context, tx *gorm.DB, tenantId string, itemId int) (*models.Item, error) {
	var item models.Item
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, itemId).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// PostInventoryIssue takes stock out at moving average cost. Issues tied to
// a crop cycle go to WIP; untied issues go straight to farm expense.
func PostInventoryIssue(ctx context.Context, id int, postingDate *time.Time) (*models.InventoryIssue, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.InventoryIssue
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.InventoryIssue](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.IssueDate)
		if doc.CropCycleId != nil {
			if err := assertOpenCycle(ctx, tx, tenantId, *doc.CropCycleId, date); err != nil {
				return err
			}
		}

		item, err := fetchItem(ctx, tx, tenantId, doc.ItemId)
		if err != nil {
			return err
		}
		value, wac, err := issueValue(ctx, tx, tenantId, doc.WarehouseId, doc.ItemId, doc.Qty)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Inventory issue #%d %s", doc.ID, doc.Reason)
		debitAccount := models.AccountCodeFarmExpense
		if doc.CropCycleId != nil {
			debitAccount = models.AccountCodeWIPCrop
		}

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeInventoryIssue,
			SourceId:       doc.ID,
			CropCycleId:    doc.CropCycleId,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeInventoryIssue, doc.ID),
		}
		plan.addLine(debitAccount, value, decimal.Zero, description)
		plan.addLine(inventoryAccountFor(item), decimal.Zero, value, description)
		if doc.CropCycleId != nil {
			plan.Allocations = append(plan.Allocations, AllocationLine{
				CropCycleId: doc.CropCycleId,
				Type:        costAllocationType(doc.CostClass),
				Amount:      value,
				RuleSnapshot: map[string]interface{}{
					"qty":        doc.Qty.String(),
					"wac":        wac.String(),
					"cost_class": string(doc.CostClass),
				},
			})
		}
		plan.Movements = append(plan.Movements, MovementLine{
			WarehouseId:  doc.WarehouseId,
			ItemId:       doc.ItemId,
			MovementType: models.MovementTypeIssue,
			QtyDelta:     doc.Qty.Neg(),
			ValueDelta:   value.Neg(),
			UnitCost:     wac,
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

// PostStockTransfer moves stock between warehouses at the source moving
// average cost. The ledger entry debits and credits the same inventory
// account; the per-warehouse balances carry the actual shift.
func PostStockTransfer(ctx context.Context, id int, postingDate *time.Time) (*models.StockTransfer, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.StockTransfer
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.StockTransfer](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.TransferDate)
		item, err := fetchItem(ctx, tx, tenantId, doc.ItemId)
		if err != nil {
			return err
		}
		value, wac, err := issueValue(ctx, tx, tenantId, doc.FromWarehouseId, doc.ItemId, doc.Qty)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Stock transfer #%d", doc.ID)
		account := inventoryAccountFor(item)

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeStockTransfer,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeStockTransfer, doc.ID),
		}
		plan.addLine(account, value, decimal.Zero, description)
		plan.addLine(account, decimal.Zero, value, description)
		plan.Movements = append(plan.Movements,
			MovementLine{
				WarehouseId:  doc.FromWarehouseId,
				ItemId:       doc.ItemId,
				MovementType: models.MovementTypeTransferOut,
				QtyDelta:     doc.Qty.Neg(),
				ValueDelta:   value.Neg(),
				UnitCost:     wac,
			},
			MovementLine{
				WarehouseId:  doc.ToWarehouseId,
				ItemId:       doc.ItemId,
				MovementType: models.MovementTypeTransferIn,
				QtyDelta:     doc.Qty,
				ValueDelta:   value,
				UnitCost:     wac,
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

// PostInventoryAdjustment books a count correction at the current moving
// average cost, to the gain account for surplus and the loss account for
// shortage.
func PostInventoryAdjustment(ctx context.Context, id int, postingDate *time.Time) (*models.InventoryAdjustment, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.InventoryAdjustment
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		doc, err := fetchForPosting[models.InventoryAdjustment](ctx, tx, tenantId, id)
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

		date := resolvePostingDate(postingDate, doc.AdjustmentDate)
		item, err := fetchItem(ctx, tx, tenantId, doc.ItemId)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Inventory adjustment #%d %s", doc.ID, doc.Reason)
		inventoryAccount := inventoryAccountFor(item)

		plan := &LedgerPlan{
			SourceType:     models.SourceTypeInventoryAdjustment,
			SourceId:       doc.ID,
			PostingDate:    date,
			IdempotencyKey: postKey(models.SourceTypeInventoryAdjustment, doc.ID),
		}

		var value, wac decimal.Decimal
		if doc.QtyDelta.IsPositive() {
			balance, err := lockStockBalance(ctx, tx, tenantId, doc.WarehouseId, doc.ItemId)
			if err != nil {
				return err
			}
			wac = balance.WacCost
			value = doc.QtyDelta.Mul(wac).Round(2)
			plan.addLine(inventoryAccount, value, decimal.Zero, description)
			plan.addLine(models.AccountCodeAdjustmentGain, decimal.Zero, value, description)
		} else {
			outQty := doc.QtyDelta.Neg()
			value, wac, err = issueValue(ctx, tx, tenantId, doc.WarehouseId, doc.ItemId, outQty)
			if err != nil {
				return err
			}
			plan.addLine(models.AccountCodeAdjustmentLoss, value, decimal.Zero, description)
			plan.addLine(inventoryAccount, decimal.Zero, value, description)
			value = value.Neg()
		}

		plan.Movements = append(plan.Movements, MovementLine{
			WarehouseId:  doc.WarehouseId,
			ItemId:       doc.ItemId,
			MovementType: models.MovementTypeAdjustment,
			QtyDelta:     doc.QtyDelta,
			ValueDelta:   value,
			UnitCost:     wac,
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
