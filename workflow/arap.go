package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOverpayment        = errors.New("payment exceeds the party's total outstanding balance")
	ErrPaymentNotPosted   = errors.New("payment must be posted before allocation")
	ErrNothingToAllocate  = errors.New("payment has no unapplied amount left")
	ErrOverAllocation     = errors.New("allocation exceeds the document's outstanding balance")
	ErrAllocationExceeded = errors.New("requested allocations exceed the payment's unapplied amount")
)

// allocationTolerance absorbs rounding residue when deciding whether a
// payment is fully applied or a document is fully settled.
var allocationTolerance = decimal.NewFromFloat(0.01)

// ManualAllocationLine is one caller-chosen (document, amount) pair for
// manual allocation mode.
type ManualAllocationLine struct {
	DocumentId int             `json:"document_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

func allocatableDocTypeFor(direction models.PaymentDirection) models.AllocatableDocType {
	if direction == models.PaymentDirectionIn {
		return models.AllocatableDocSale
	}
	return models.AllocatableDocGoodsReceipt
}

// paymentUnapplied is the payment amount less its active allocations.
func paymentUnapplied(ctx context.Context, tenantId string, payment *models.Payment) (decimal.Decimal, error) {
	allocated, err := models.GetPaymentAllocatedAmount(ctx, tenantId, payment.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return payment.Amount.Sub(allocated), nil
}

func fetchPostedPayment(ctx context.Context, tx *gorm.DB, tenantId string, paymentId int) (*models.Payment, error) {
	payment, err := fetchForPosting[models.Payment](ctx, tx, tenantId, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.DocumentStatusPosted {
		return nil, ErrPaymentNotPosted
	}
	return payment, nil
}

// AllocatePaymentFIFO walks the party's open documents oldest first and
// consumes the payment's unapplied amount against each outstanding balance,
// splitting on the boundary. The walk never writes ledger entries, only
// allocation rows. A payment larger than the total outstanding fails whole;
// nothing is allocated.
func AllocatePaymentFIFO(ctx context.Context, paymentId int) ([]models.PaymentAllocation, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var created []models.PaymentAllocation
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		payment, err := fetchPostedPayment(ctx, tx, tenantId, paymentId)
		if err != nil {
			return err
		}
		remaining, err := paymentUnapplied(ctx, tenantId, payment)
		if err != nil {
			return err
		}
		if !remaining.GreaterThan(decimal.Zero) {
			return ErrNothingToAllocate
		}

		docType := allocatableDocTypeFor(payment.Direction)
		type openDoc struct {
			id          int
			outstanding decimal.Decimal
		}
		var open []openDoc
		if docType == models.AllocatableDocSale {
			sales, err := models.GetOpenSalesFIFO(ctx, tenantId, payment.PartyId)
			if err != nil {
				return err
			}
			for i := range sales {
				outstanding, err := models.GetSaleOutstanding(ctx, tenantId, &sales[i])
				if err != nil {
					return err
				}
				open = append(open, openDoc{id: sales[i].ID, outstanding: outstanding})
			}
		} else {
			receipts, err := models.GetOpenGoodsReceiptsFIFO(ctx, tenantId, payment.PartyId)
			if err != nil {
				return err
			}
			for i := range receipts {
				outstanding, err := models.GetReceiptOutstanding(ctx, tenantId, &receipts[i])
				if err != nil {
					return err
				}
				open = append(open, openDoc{id: receipts[i].ID, outstanding: outstanding})
			}
		}

		for _, doc := range open {
			if !remaining.GreaterThan(decimal.Zero) {
				break
			}
			amount := decimal.Min(remaining, doc.outstanding)
			if !amount.IsPositive() {
				continue
			}
			allocation := models.PaymentAllocation{
				TenantId:     tenantId,
				PaymentId:    payment.ID,
				DocumentType: docType,
				DocumentId:   doc.id,
				Amount:       amount,
				Status:       models.AllocationStatusActive,
			}
			if err := tx.WithContext(ctx).Create(&allocation).Error; err != nil {
				return err
			}
			created = append(created, allocation)
			remaining = remaining.Sub(amount)
		}

		if remaining.GreaterThan(allocationTolerance) {
			return fmt.Errorf("%w: %s left unapplied", ErrOverpayment, remaining.StringFixed(2))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AllocatePaymentManual applies caller-chosen amounts against specific
// documents. Each line is checked against that document's live outstanding
// balance and the batch against the payment's unapplied amount; there is no
// auto-fill and no partial acceptance.
func AllocatePaymentManual(ctx context.Context, paymentId int, lines []ManualAllocationLine) ([]models.PaymentAllocation, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("at least one allocation line is required")
	}

	var created []models.PaymentAllocation
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		payment, err := fetchPostedPayment(ctx, tx, tenantId, paymentId)
		if err != nil {
			return err
		}
		unapplied, err := paymentUnapplied(ctx, tenantId, payment)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, line := range lines {
			if !line.Amount.IsPositive() {
				return errors.New("allocation amounts must be positive")
			}
			total = total.Add(line.Amount)
		}
		if total.GreaterThan(unapplied) {
			return ErrAllocationExceeded
		}

		docType := allocatableDocTypeFor(payment.Direction)
		for _, line := range lines {
			var outstanding decimal.Decimal
			if docType == models.AllocatableDocSale {
				sale, err := fetchForPosting[models.Sale](ctx, tx, tenantId, line.DocumentId)
				if err != nil {
					return err
				}
				if sale.Status != models.DocumentStatusPosted {
					return fmt.Errorf("sale %d is not posted", sale.ID)
				}
				outstanding, err = models.GetSaleOutstanding(ctx, tenantId, sale)
				if err != nil {
					return err
				}
			} else {
				receipt, err := fetchForPosting[models.GoodsReceipt](ctx, tx, tenantId, line.DocumentId)
				if err != nil {
					return err
				}
				if receipt.Status != models.DocumentStatusPosted {
					return fmt.Errorf("goods receipt %d is not posted", receipt.ID)
				}
				if err := tx.WithContext(ctx).
					Where("tenant_id = ? AND goods_receipt_id = ?", tenantId, receipt.ID).
					Find(&receipt.Lines).Error; err != nil {
					return err
				}
				outstanding, err = models.GetReceiptOutstanding(ctx, tenantId, receipt)
				if err != nil {
					return err
				}
			}
			if line.Amount.GreaterThan(outstanding) {
				return fmt.Errorf("%w: document %d has %s outstanding", ErrOverAllocation, line.DocumentId, outstanding.StringFixed(2))
			}

			allocation := models.PaymentAllocation{
				TenantId:     tenantId,
				PaymentId:    payment.ID,
				DocumentType: docType,
				DocumentId:   line.DocumentId,
				Amount:       line.Amount,
				Status:       models.AllocationStatusActive,
			}
			if err := tx.WithContext(ctx).Create(&allocation).Error; err != nil {
				return err
			}
			created = append(created, allocation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UnapplyAllocation voids one active allocation so the amount can be
// reallocated. The row survives with status VOID; outstanding and unapplied
// recomputations skip it.
func UnapplyAllocation(ctx context.Context, allocationId int) (*models.PaymentAllocation, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var result *models.PaymentAllocation
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		allocation, err := fetchForPosting[models.PaymentAllocation](ctx, tx, tenantId, allocationId)
		if err != nil {
			return err
		}
		if err := models.VoidAllocation(ctx, tx, allocation); err != nil {
			return err
		}
		result = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnapplyPaymentAllocations voids every active allocation a payment holds,
// oldest first, and returns them.
func UnapplyPaymentAllocations(ctx context.Context, paymentId int) ([]models.PaymentAllocation, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var voided []models.PaymentAllocation
	err = withPostingTx(ctx, tenantId, func(tx *gorm.DB) error {
		allocations, err := models.GetActiveAllocations(ctx, tenantId, paymentId)
		if err != nil {
			return err
		}
		for i := range allocations {
			if err := models.VoidAllocation(ctx, tx, &allocations[i]); err != nil {
				return err
			}
			voided = append(voided, allocations[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voided, nil
}
