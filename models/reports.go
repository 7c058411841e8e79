package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// AccountBalanceRow is one line of the trial balance.
type AccountBalanceRow struct {
	AccountId   int             `json:"account_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	AccountType AccountType     `json:"account_type"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// GetAccountBalances sums ledger entries per account up to and including
// asOf. Reversed groups are left in; their entries cancel arithmetically.
func GetAccountBalances(ctx context.Context, tenantId string, asOf time.Time) ([]AccountBalanceRow, error) {
	var rows []AccountBalanceRow
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id, a.code, a.name, a.account_type,
		       COALESCE(SUM(le.debit_amount), 0) AS total_debit,
		       COALESCE(SUM(le.credit_amount), 0) AS total_credit,
		       COALESCE(SUM(le.debit_amount - le.credit_amount), 0) AS balance
		FROM accounts a
		LEFT JOIN ledger_entries le
		  ON le.account_id = a.id AND le.tenant_id = a.tenant_id AND le.entry_date <= ?
		WHERE a.tenant_id = ?
		GROUP BY a.id, a.code, a.name, a.account_type
		ORDER BY a.code`, asOf, tenantId).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetSaleOutstanding is the unpaid remainder of a posted sale.
func GetSaleOutstanding(ctx context.Context, tenantId string, sale *Sale) (decimal.Decimal, error) {
	allocated, err := GetAllocatedAmount(ctx, tenantId, AllocatableDocSale, sale.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return sale.Total().Sub(allocated), nil
}

// GetReceiptOutstanding is the unpaid remainder of a posted goods receipt.
func GetReceiptOutstanding(ctx context.Context, tenantId string, receipt *GoodsReceipt) (decimal.Decimal, error) {
	allocated, err := GetAllocatedAmount(ctx, tenantId, AllocatableDocGoodsReceipt, receipt.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return receipt.Total().Sub(allocated), nil
}

// GetOpenSalesFIFO lists the buyer's posted, unreversed sales that still
// carry an outstanding balance, oldest first. Order is posting date, then
// creation time, then id, so replays allocate identically.
func GetOpenSalesFIFO(ctx context.Context, tenantId string, buyerPartyId int) ([]Sale, error) {
	var sales []Sale
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(`
		SELECT s.* FROM sales s
		WHERE s.tenant_id = ? AND s.buyer_party_id = ? AND s.status = ?
		  AND ROUND(s.qty * s.unit_price, 2) - COALESCE((
			SELECT SUM(pa.amount) FROM payment_allocations pa
			WHERE pa.tenant_id = s.tenant_id AND pa.document_type = ?
			  AND pa.document_id = s.id AND pa.status = ?
		  ), 0) > 0.009
		ORDER BY s.posting_date, s.created_at, s.id`,
		tenantId, buyerPartyId, DocumentStatusPosted,
		AllocatableDocSale, AllocationStatusActive,
	).Scan(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// GetOpenGoodsReceiptsFIFO lists the supplier's posted, unreversed receipts
// with an outstanding balance, oldest first.
func GetOpenGoodsReceiptsFIFO(ctx context.Context, tenantId string, supplierPartyId int) ([]GoodsReceipt, error) {
	var receipts []GoodsReceipt
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(`
		SELECT gr.* FROM goods_receipts gr
		WHERE gr.tenant_id = ? AND gr.supplier_party_id = ? AND gr.status = ?
		  AND COALESCE((
			SELECT SUM(ROUND(l.qty * l.unit_cost, 2)) FROM goods_receipt_lines l
			WHERE l.tenant_id = gr.tenant_id AND l.goods_receipt_id = gr.id
		  ), 0) - COALESCE((
			SELECT SUM(pa.amount) FROM payment_allocations pa
			WHERE pa.tenant_id = gr.tenant_id AND pa.document_type = ?
			  AND pa.document_id = gr.id AND pa.status = ?
		  ), 0) > 0.009
		ORDER BY gr.posting_date, gr.created_at, gr.id`,
		tenantId, supplierPartyId, DocumentStatusPosted,
		AllocatableDocGoodsReceipt, AllocationStatusActive,
	).Scan(&receipts).Error
	if err != nil {
		return nil, err
	}
	for i := range receipts {
		var lines []GoodsReceiptLine
		err = db.WithContext(ctx).
			Where("tenant_id = ? AND goods_receipt_id = ?", tenantId, receipts[i].ID).
			Find(&lines).Error
		if err != nil {
			return nil, err
		}
		receipts[i].Lines = lines
	}
	return receipts, nil
}

// GetPartyPayableBalance is what the farm still owes the party out of
// posted settlements: distribution shares less payable reductions, with
// reversed groups excluded.
func GetPartyPayableBalance(ctx context.Context, tenantId string, partyId int) (decimal.Decimal, error) {
	db := config.GetDB()
	type row struct {
		Balance decimal.Decimal
	}
	var result row
	err := db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE WHEN ar.allocation_type = ? THEN -ar.amount ELSE ar.amount END), 0) AS balance
		FROM allocation_rows ar
		JOIN posting_groups pg ON pg.id = ar.posting_group_id
		WHERE ar.tenant_id = ?
		  AND ar.party_id = ?
		  AND ar.allocation_type IN (?, ?, ?)
		  AND pg.source_type <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM posting_groups rev
			WHERE rev.tenant_id = pg.tenant_id
			  AND rev.reversal_of_posting_group_id = pg.id
		  )`,
		AllocationTypeReducePayable, tenantId, partyId,
		AllocationTypeKamdari, AllocationTypePoolShare, AllocationTypeReducePayable,
		SourceTypeReversal,
	).Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Balance, nil
}

// PartyStatementRow is one ledger-backed movement on a party's statement.
type PartyStatementRow struct {
	PostingDate    time.Time       `json:"posting_date"`
	SourceType     string          `json:"source_type"`
	SourceId       int             `json:"source_id"`
	GroupNumber    string          `json:"group_number"`
	AllocationType string          `json:"allocation_type"`
	Amount         decimal.Decimal `json:"amount"`
}

// GetPartyStatement lists every allocation row touching the party in date
// order, reversals included so the statement shows the full history.
func GetPartyStatement(ctx context.Context, tenantId string, partyId int, from, to time.Time) ([]PartyStatementRow, error) {
	var rows []PartyStatementRow
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(`
		SELECT pg.posting_date, pg.source_type, pg.source_id, pg.group_number,
		       ar.allocation_type, ar.amount
		FROM allocation_rows ar
		JOIN posting_groups pg ON pg.id = ar.posting_group_id
		WHERE ar.tenant_id = ? AND ar.party_id = ?
		  AND pg.posting_date >= ? AND pg.posting_date <= ?
		ORDER BY pg.posting_date, pg.id, ar.id`,
		tenantId, partyId, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportPartyStatement writes the party's statement as an xlsx workbook.
func ExportPartyStatement(ctx context.Context, w io.Writer, partyId int, from, to time.Time) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return errors.New("tenant id is required")
	}
	party, err := utils.FetchModel[Party](ctx, tenantId, partyId)
	if err != nil {
		return errors.New("party not found")
	}
	rows, err := GetPartyStatement(ctx, tenantId, partyId, from, to)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Party")
	f.SetCellValue(sheet, "B1", party.Name)
	f.SetCellValue(sheet, "A2", "Date")
	f.SetCellValue(sheet, "B2", "Source")
	f.SetCellValue(sheet, "C2", "Reference")
	f.SetCellValue(sheet, "D2", "Type")
	f.SetCellValue(sheet, "E2", "Amount")

	for i, r := range rows {
		rowNo := i + 3
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), r.PostingDate.Format("2006-01-02"))
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), r.SourceType)
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), r.GroupNumber)
		f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), r.AllocationType)
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), r.Amount.InexactFloat64())
	}

	return f.Write(w)
}
