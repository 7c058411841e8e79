package models

// Account classification, fixed at account creation.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeEquity    AccountType = "EQUITY"
)

// DocumentStatus transitions are one-directional: DRAFT -> POSTED -> REVERSED.
type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "DRAFT"
	DocumentStatusPosted   DocumentStatus = "POSTED"
	DocumentStatusReversed DocumentStatus = "REVERSED"
)

// PostingSourceType identifies the document family that produced a posting group.
type PostingSourceType string

const (
	SourceTypeWorkLog             PostingSourceType = "WORK_LOG"
	SourceTypeCropActivity        PostingSourceType = "CROP_ACTIVITY"
	SourceTypeGoodsReceipt        PostingSourceType = "GOODS_RECEIPT"
	SourceTypeInventoryIssue      PostingSourceType = "INVENTORY_ISSUE"
	SourceTypeStockTransfer       PostingSourceType = "STOCK_TRANSFER"
	SourceTypeInventoryAdjustment PostingSourceType = "INVENTORY_ADJUSTMENT"
	SourceTypeHarvest             PostingSourceType = "HARVEST"
	SourceTypeMachineryJob        PostingSourceType = "MACHINERY_JOB"
	SourceTypeMachineryService    PostingSourceType = "MACHINERY_SERVICE"
	SourceTypeMachineryCharge     PostingSourceType = "MACHINERY_CHARGE"
	SourceTypeSale                PostingSourceType = "SALE"
	SourceTypeAdvance             PostingSourceType = "ADVANCE"
	SourceTypePayment             PostingSourceType = "PAYMENT"
	SourceTypeJournalEntry        PostingSourceType = "JOURNAL_ENTRY"
	SourceTypeSettlement          PostingSourceType = "SETTLEMENT"
	SourceTypeReversal            PostingSourceType = "REVERSAL"
)

// AllocationType tags an allocation row's business meaning. Settlement
// aggregation keys off POOL_REVENUE / SHARED_COST / HARI_ONLY_COST.
type AllocationType string

const (
	AllocationTypePoolRevenue   AllocationType = "POOL_REVENUE"
	AllocationTypeSharedCost    AllocationType = "SHARED_COST"
	AllocationTypeHariOnlyCost  AllocationType = "HARI_ONLY_COST"
	AllocationTypeSupplierAP    AllocationType = "SUPPLIER_AP"
	AllocationTypeSaleCOGS      AllocationType = "SALE_COGS"
	AllocationTypeAdvance       AllocationType = "ADVANCE"
	AllocationTypeMachineJob    AllocationType = "MACHINE_JOB"
	AllocationTypeKamdari       AllocationType = "KAMDARI"
	AllocationTypePoolShare     AllocationType = "POOL_SHARE"
	AllocationTypeHariOnly      AllocationType = "HARI_ONLY"
	AllocationTypeReducePayable AllocationType = "REDUCE_PAYABLE"
	AllocationTypeReduceAdvance AllocationType = "REDUCE_ADVANCE"
)

// CostClass splits operational expenses for the settlement waterfall.
type CostClass string

const (
	CostClassShared   CostClass = "SHARED"
	CostClassHariOnly CostClass = "HARI_ONLY"
)

type MovementType string

const (
	MovementTypeReceipt     MovementType = "RECEIPT"
	MovementTypeIssue       MovementType = "ISSUE"
	MovementTypeTransferIn  MovementType = "TRANSFER_IN"
	MovementTypeTransferOut MovementType = "TRANSFER_OUT"
	MovementTypeAdjustment  MovementType = "ADJUSTMENT"
	MovementTypeHarvest     MovementType = "HARVEST"
	MovementTypeSale        MovementType = "SALE"
	MovementTypeReversal    MovementType = "REVERSAL"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

type CropCycleStatus string

const (
	CropCycleStatusOpen   CropCycleStatus = "OPEN"
	CropCycleStatusClosed CropCycleStatus = "CLOSED"
)

type PaymentDirection string

const (
	PaymentDirectionIn  PaymentDirection = "IN"
	PaymentDirectionOut PaymentDirection = "OUT"
)

// AllocationMode selects how a payment is matched against open documents.
type AllocationMode string

const (
	AllocationModeFIFO   AllocationMode = "FIFO"
	AllocationModeManual AllocationMode = "MANUAL"
)

type AllocationStatus string

const (
	AllocationStatusActive AllocationStatus = "ACTIVE"
	AllocationStatusVoid   AllocationStatus = "VOID"
)

// AllocatableDocType names the open-document side a payment allocation targets.
type AllocatableDocType string

const (
	AllocatableDocSale         AllocatableDocType = "SALE"
	AllocatableDocGoodsReceipt AllocatableDocType = "GOODS_RECEIPT"
)

type ItemType string

const (
	ItemTypeInput   ItemType = "INPUT"
	ItemTypeProduce ItemType = "PRODUCE"
)

type PostingEventType string

const (
	PostingEventPosted   PostingEventType = "POSTED"
	PostingEventReversed PostingEventType = "REVERSED"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
