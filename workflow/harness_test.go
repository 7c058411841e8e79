package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testFixture wires a throwaway database with one tenant, the system
// chart of accounts, reference data and an open crop cycle. The per-tenant
// posting lock no-ops outside MySQL, so the posting paths run unchanged.
type testFixture struct {
	ctx      context.Context
	tenantId string

	warehouse *models.Warehouse
	landlord  *models.Party
	hari      *models.Party
	kamdari   *models.Party
	supplier  *models.Party
	buyer     *models.Party
	inputItem *models.Item
	produce   *models.Item
	project   *models.Project
	cycle     *models.CropCycle
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	// WAL lets lookup queries on the pool run while a posting
	// transaction holds the write lock.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000",
		filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	config.SetDB(db)
	models.MigrateTable()

	ctx := context.Background()
	tenant, err := models.CreateTenant(ctx, &models.NewTenant{Name: "Test Farm"})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	ctx = utils.SetTenantIdInContext(ctx, tenant.ID)
	ctx = utils.SetUserNameInContext(ctx, "test")

	f := &testFixture{ctx: ctx, tenantId: tenant.ID}

	var warehouse models.Warehouse
	if err := db.WithContext(ctx).
		Where("tenant_id = ?", tenant.ID).
		First(&warehouse).Error; err != nil {
		t.Fatalf("fetch primary warehouse: %v", err)
	}
	f.warehouse = &warehouse

	f.landlord = mustParty(t, ctx, "Landlord")
	f.hari = mustParty(t, ctx, "Hari")
	f.kamdari = mustParty(t, ctx, "Kamdari")
	f.supplier = mustParty(t, ctx, "Supplier")
	f.buyer = mustParty(t, ctx, "Buyer")

	f.inputItem, err = models.CreateItem(ctx, &models.NewItem{Name: "Urea", Type: models.ItemTypeInput, Unit: "bag"})
	if err != nil {
		t.Fatalf("CreateItem input: %v", err)
	}
	f.produce, err = models.CreateItem(ctx, &models.NewItem{Name: "Wheat", Type: models.ItemTypeProduce, Unit: "maund"})
	if err != nil {
		t.Fatalf("CreateItem produce: %v", err)
	}

	kamdariId := f.kamdari.ID
	f.project, err = models.CreateProject(ctx, &models.NewProject{
		Name:            "North Farm",
		LandlordPartyId: f.landlord.ID,
		HariPartyId:     f.hari.ID,
		KamdariPartyId:  &kamdariId,
		KamdariPct:      dec("10"),
		LandlordPct:     dec("40"),
		HariPct:         dec("60"),
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	f.cycle, err = models.CreateCropCycle(ctx, &models.NewCropCycle{
		ProjectId: f.project.ID,
		Name:      "Wheat 2026",
		CropName:  "Wheat",
	})
	if err != nil {
		t.Fatalf("CreateCropCycle: %v", err)
	}
	return f
}

func mustParty(t *testing.T, ctx context.Context, name string) *models.Party {
	t.Helper()
	party, err := models.CreateParty(ctx, &models.NewParty{Name: name})
	if err != nil {
		t.Fatalf("CreateParty %s: %v", name, err)
	}
	return party
}

// receiveStock posts a goods receipt so issue-side tests start with
// on-hand quantity and value.
func (f *testFixture) receiveStock(t *testing.T, item *models.Item, qty, unitCost string, date string) *models.GoodsReceipt {
	t.Helper()
	receipt, err := models.CreateGoodsReceipt(f.ctx, &models.NewGoodsReceipt{
		SupplierPartyId: f.supplier.ID,
		WarehouseId:     f.warehouse.ID,
		ReceiptDate:     day(date),
		Lines: []models.NewGoodsReceiptLine{
			{ItemId: item.ID, Qty: dec(qty), UnitCost: dec(unitCost)},
		},
	})
	if err != nil {
		t.Fatalf("CreateGoodsReceipt: %v", err)
	}
	posted, err := PostGoodsReceipt(f.ctx, receipt.ID, nil)
	if err != nil {
		t.Fatalf("PostGoodsReceipt: %v", err)
	}
	return posted
}

func (f *testFixture) stockBalance(t *testing.T, item *models.Item) *models.StockBalance {
	t.Helper()
	var balance models.StockBalance
	err := config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND warehouse_id = ? AND item_id = ?", f.tenantId, f.warehouse.ID, item.ID).
		First(&balance).Error
	if err != nil {
		t.Fatalf("fetch stock balance: %v", err)
	}
	return &balance
}

func (f *testFixture) groupEntries(t *testing.T, groupId int) []models.LedgerEntry {
	t.Helper()
	var entries []models.LedgerEntry
	err := config.GetDB().WithContext(f.ctx).
		Where("tenant_id = ? AND posting_group_id = ?", f.tenantId, groupId).
		Order("id").
		Find(&entries).Error
	if err != nil {
		t.Fatalf("fetch ledger entries: %v", err)
	}
	return entries
}

func entryTotals(entries []models.LedgerEntry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit
}
