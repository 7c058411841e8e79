package models

import (
	"log"

	"github.com/agrifocus/farmbooks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tenant{}, &User{},
		&Account{}, &AccountingPeriod{},
		&PostingGroup{}, &LedgerEntry{}, &AllocationRow{},
		&StockBalance{}, &StockMovement{},
		&Party{}, &Warehouse{}, &Item{}, &Machine{},
		&Project{}, &CropCycle{}, &LandParcel{}, &CropCycleParcel{},
		&WorkLog{}, &CropActivity{},
		&GoodsReceipt{}, &GoodsReceiptLine{},
		&InventoryIssue{}, &StockTransfer{}, &InventoryAdjustment{},
		&Harvest{}, &HarvestLine{},
		&MachineryJob{}, &MachineryService{}, &MachineryCharge{}, &MachineryChargeLine{},
		&Sale{}, &Advance{}, &Payment{}, &PaymentAllocation{},
		&JournalEntry{}, &JournalEntryLine{},
		&Settlement{},
		&PostingEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
