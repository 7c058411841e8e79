package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientStock = errors.New("insufficient stock on hand")

// lockStockBalance reads the (warehouse, item) balance FOR UPDATE, creating
// a zero row on first touch so the lock has something to hold.
func lockStockBalance(ctx context.Context, tx *gorm.DB, tenantId string, warehouseId, itemId int) (*models.StockBalance, error) {
	var balance models.StockBalance
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND warehouse_id = ? AND item_id = ?", tenantId, warehouseId, itemId).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	balance = models.StockBalance{
		TenantId:    tenantId,
		WarehouseId: warehouseId,
		ItemId:      itemId,
		QtyOnHand:   decimal.Zero,
		ValueOnHand: decimal.Zero,
		WacCost:     decimal.Zero,
	}
	if createErr := tx.WithContext(ctx).Create(&balance).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) || isDuplicateKeyErr(createErr) {
			err = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("tenant_id = ? AND warehouse_id = ? AND item_id = ?", tenantId, warehouseId, itemId).
				First(&balance).Error
			if err != nil {
				return nil, err
			}
			return &balance, nil
		}
		return nil, createErr
	}
	return &balance, nil
}

// valueAtWAC prices an outgoing quantity at the balance's moving average.
// Taking the whole position out takes the whole value, so no residual cost
// is ever stranded on a zero-quantity balance.
func valueAtWAC(balance *models.StockBalance, qty decimal.Decimal) decimal.Decimal {
	if qty.Equal(balance.QtyOnHand) {
		return balance.ValueOnHand
	}
	return qty.Mul(balance.WacCost).Round(2)
}

// issueValue prices an issue of qty against the current balance, failing
// when the warehouse does not hold enough.
func issueValue(ctx context.Context, tx *gorm.DB, tenantId string, warehouseId, itemId int, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	balance, err := lockStockBalance(ctx, tx, tenantId, warehouseId, itemId)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if balance.QtyOnHand.LessThan(qty) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: warehouse_id=%d item_id=%d on_hand=%s requested=%s",
			ErrInsufficientStock, warehouseId, itemId, balance.QtyOnHand.String(), qty.String())
	}
	return valueAtWAC(balance, qty), balance.WacCost, nil
}

// issueValueAtDate prices an issue at the moving average in effect on asOf,
// so a back-dated document carries the cost of its own day rather than
// today's. Quantity is still checked against the live balance; stock can
// never go negative no matter what date the document carries.
func issueValueAtDate(ctx context.Context, tx *gorm.DB, tenantId string, warehouseId, itemId int, qty decimal.Decimal, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	balance, err := lockStockBalance(ctx, tx, tenantId, warehouseId, itemId)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if balance.QtyOnHand.LessThan(qty) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: warehouse_id=%d item_id=%d on_hand=%s requested=%s",
			ErrInsufficientStock, warehouseId, itemId, balance.QtyOnHand.String(), qty.String())
	}
	wac, err := wacAtDate(ctx, tx, tenantId, warehouseId, itemId, asOf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	// Taking the whole position out at today's average takes the whole
	// value, same as valueAtWAC.
	if qty.Equal(balance.QtyOnHand) && wac.Equal(balance.WacCost) {
		return balance.ValueOnHand, wac, nil
	}
	return qty.Mul(wac).Round(2), wac, nil
}

// applyMovement records the movement row and rolls the live balance
// forward. Deltas are explicit; callers priced issues via issueValue before
// building the plan, so this stays a pure apply step.
func applyMovement(ctx context.Context, tx *gorm.DB, tenantId string, group *models.PostingGroup, m MovementLine) error {
	balance, err := lockStockBalance(ctx, tx, tenantId, m.WarehouseId, m.ItemId)
	if err != nil {
		return err
	}

	newQty := balance.QtyOnHand.Add(m.QtyDelta)
	if newQty.IsNegative() {
		return fmt.Errorf("%w: warehouse_id=%d item_id=%d on_hand=%s delta=%s",
			ErrInsufficientStock, m.WarehouseId, m.ItemId, balance.QtyOnHand.String(), m.QtyDelta.String())
	}
	newValue := balance.ValueOnHand.Add(m.ValueDelta)
	newWac := decimal.Zero
	if newQty.IsPositive() {
		newWac = newValue.Div(newQty).Round(4)
	}

	movement := models.StockMovement{
		TenantId:         tenantId,
		WarehouseId:      m.WarehouseId,
		ItemId:           m.ItemId,
		MovementType:     m.MovementType,
		QtyDelta:         m.QtyDelta,
		ValueDelta:       m.ValueDelta,
		UnitCostSnapshot: m.UnitCost,
		PostingGroupId:   group.ID,
		SourceType:       group.SourceType,
		SourceId:         group.SourceId,
		OccurredAt:       group.PostingDate,
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&models.StockBalance{}).
		Where("id = ?", balance.ID).
		Updates(map[string]interface{}{
			"qty_on_hand":   newQty,
			"value_on_hand": newValue,
			"wac_cost":      newWac,
		}).Error
}

// ComputeWACAtDate replays the movement ledger up to and including asOf and
// returns the moving average cost at that point. Used for historical
// valuation; the live balance row answers "now".
func ComputeWACAtDate(ctx context.Context, tenantId string, warehouseId, itemId int, asOf time.Time) (decimal.Decimal, error) {
	return wacAtDate(ctx, config.GetDB(), tenantId, warehouseId, itemId, asOf)
}

func wacAtDate(ctx context.Context, db *gorm.DB, tenantId string, warehouseId, itemId int, asOf time.Time) (decimal.Decimal, error) {
	var movements []models.StockMovement
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND warehouse_id = ? AND item_id = ? AND occurred_at <= ?",
			tenantId, warehouseId, itemId, asOf).
		Order("occurred_at, id").
		Find(&movements).Error
	if err != nil {
		return decimal.Zero, err
	}

	qty := decimal.Zero
	value := decimal.Zero
	for _, m := range movements {
		qty = qty.Add(m.QtyDelta)
		value = value.Add(m.ValueDelta)
	}
	if !qty.IsPositive() {
		return decimal.Zero, nil
	}
	return value.Div(qty).Round(4), nil
}

// RebuildStockBalances recomputes every live balance for the tenant from
// the movement ledger. Recovery tool; posting keeps balances current on its
// own.
func RebuildStockBalances(ctx context.Context, tenantId string) error {
	db := config.GetDB()

	type key struct {
		WarehouseId int
		ItemId      int
	}
	var keys []key
	err := db.WithContext(ctx).Model(&models.StockMovement{}).
		Select("DISTINCT warehouse_id, item_id").
		Where("tenant_id = ?", tenantId).
		Scan(&keys).Error
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			var movements []models.StockMovement
			err := tx.WithContext(ctx).
				Where("tenant_id = ? AND warehouse_id = ? AND item_id = ?", tenantId, k.WarehouseId, k.ItemId).
				Order("occurred_at, id").
				Find(&movements).Error
			if err != nil {
				return err
			}
			qty := decimal.Zero
			value := decimal.Zero
			for _, m := range movements {
				qty = qty.Add(m.QtyDelta)
				value = value.Add(m.ValueDelta)
			}
			wac := decimal.Zero
			if qty.IsPositive() {
				wac = value.Div(qty).Round(4)
			}

			balance, err := lockStockBalance(ctx, tx, tenantId, k.WarehouseId, k.ItemId)
			if err != nil {
				return err
			}
			err = tx.WithContext(ctx).Model(&models.StockBalance{}).
				Where("id = ?", balance.ID).
				Updates(map[string]interface{}{
					"qty_on_hand":   qty,
					"value_on_hand": value,
					"wac_cost":      wac,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
