package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"gorm.io/gorm"
)

type Account struct {
	ID           int         `gorm:"primary_key" json:"id"`
	TenantId     string      `gorm:"size:64;index;not null;index:uniq_account_code,unique" json:"tenant_id"`
	Code         string      `gorm:"size:64;not null;index:uniq_account_code,unique" json:"code" binding:"required"`
	Name         string      `gorm:"size:255;not null" json:"name" binding:"required"`
	Type         AccountType `gorm:"size:16;not null" json:"type" binding:"required"`
	IsSystem     bool        `gorm:"not null;default:false" json:"is_system"`
	IsDeprecated bool        `gorm:"not null;default:false" json:"is_deprecated"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Accounts are immutable after creation except for the deprecation flag.
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	allowed := map[string]bool{
		"IsDeprecated": true,
		"UpdatedAt":    true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("accounts are immutable except for the deprecation flag")
		}
	}
	return nil
}

// System account codes required by the posting services. A tenant missing any
// of these is misconfigured; posting fails with a configuration error.
const (
	AccountCodeCash               = "CASH"
	AccountCodeAR                 = "AR"
	AccountCodeAP                 = "AP"
	AccountCodePayableWages       = "PAYABLE_WAGES"
	AccountCodeInventoryInputs    = "INVENTORY_INPUTS"
	AccountCodeInventoryProduce   = "INVENTORY_PRODUCE"
	AccountCodeWIPCrop            = "WIP_CROP"
	AccountCodeSalesRevenue       = "SALES_REVENUE"
	AccountCodeCOGS               = "COGS"
	AccountCodeMachineryIncome    = "MACHINERY_INCOME"
	AccountCodeMachineryExpense   = "MACHINERY_EXPENSE"
	AccountCodeFarmExpense        = "FARM_EXPENSE"
	AccountCodeAdjustmentGain     = "INVENTORY_ADJUSTMENT_GAIN"
	AccountCodeAdjustmentLoss     = "INVENTORY_ADJUSTMENT_LOSS"
	AccountCodeAdvanceHari        = "ADVANCE_HARI"
	AccountCodePayableLandlord    = "PAYABLE_LANDLORD"
	AccountCodePayableHari        = "PAYABLE_HARI"
	AccountCodePayableKamdari     = "PAYABLE_KAMDARI"
	AccountCodeProfitDistribution = "PROFIT_DISTRIBUTION"
)

var systemAccountSeed = []Account{
	{Code: AccountCodeCash, Name: "Cash", Type: AccountTypeAsset},
	{Code: AccountCodeAR, Name: "Accounts Receivable", Type: AccountTypeAsset},
	{Code: AccountCodeAP, Name: "Accounts Payable", Type: AccountTypeLiability},
	{Code: AccountCodePayableWages, Name: "Wages Payable", Type: AccountTypeLiability},
	{Code: AccountCodeInventoryInputs, Name: "Inventory - Farm Inputs", Type: AccountTypeAsset},
	{Code: AccountCodeInventoryProduce, Name: "Inventory - Produce", Type: AccountTypeAsset},
	{Code: AccountCodeWIPCrop, Name: "Crop Work In Progress", Type: AccountTypeAsset},
	{Code: AccountCodeSalesRevenue, Name: "Sales Revenue", Type: AccountTypeIncome},
	{Code: AccountCodeCOGS, Name: "Cost of Goods Sold", Type: AccountTypeExpense},
	{Code: AccountCodeMachineryIncome, Name: "Machinery Income", Type: AccountTypeIncome},
	{Code: AccountCodeMachineryExpense, Name: "Machinery Expense", Type: AccountTypeExpense},
	{Code: AccountCodeFarmExpense, Name: "General Farm Expense", Type: AccountTypeExpense},
	{Code: AccountCodeAdjustmentGain, Name: "Inventory Adjustment Gain", Type: AccountTypeIncome},
	{Code: AccountCodeAdjustmentLoss, Name: "Inventory Adjustment Loss", Type: AccountTypeExpense},
	{Code: AccountCodeAdvanceHari, Name: "Hari Advances", Type: AccountTypeAsset},
	{Code: AccountCodePayableLandlord, Name: "Landlord Share Payable", Type: AccountTypeLiability},
	{Code: AccountCodePayableHari, Name: "Hari Share Payable", Type: AccountTypeLiability},
	{Code: AccountCodePayableKamdari, Name: "Kamdari Payable", Type: AccountTypeLiability},
	{Code: AccountCodeProfitDistribution, Name: "Profit Distribution", Type: AccountTypeEquity},
}

func seedSystemAccounts(ctx context.Context, tx *gorm.DB, tenantId string) error {
	for _, acc := range systemAccountSeed {
		a := acc
		a.TenantId = tenantId
		a.IsSystem = true
		if err := tx.WithContext(ctx).Create(&a).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetAccountByCode resolves a system account inside a posting transaction.
// A missing code is tenant misconfiguration, not user input.
func GetAccountByCode(tx *gorm.DB, ctx context.Context, tenantId string, code string) (*Account, error) {
	var account Account
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantId, code).
		First(&account).Error
	if err != nil {
		return nil, fmt.Errorf("system account %s is not configured for tenant", code)
	}
	return &account, nil
}

// GetSystemAccounts returns the full code -> account map for a tenant.
func GetSystemAccounts(ctx context.Context, tenantId string) (map[string]*Account, error) {
	db := config.GetDB()
	var accounts []*Account
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_system = true", tenantId).
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		result[a.Code] = a
	}
	return result, nil
}

type NewAccount struct {
	Code string      `json:"code" binding:"required"`
	Name string      `json:"name" binding:"required"`
	Type AccountType `json:"type" binding:"required"`
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateUnique[Account](ctx, tenantId, "code", input.Code, 0); err != nil {
		return nil, err
	}
	switch input.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense, AccountTypeEquity:
	default:
		return nil, errors.New("invalid account type")
	}

	account := Account{
		TenantId: tenantId,
		Code:     input.Code,
		Name:     input.Name,
		Type:     input.Type,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func DeprecateAccount(ctx context.Context, id int) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	account, err := utils.FetchModel[Account](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if account.IsSystem {
		return nil, errors.New("system accounts cannot be deprecated")
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(account).Update("IsDeprecated", true).Error; err != nil {
		return nil, err
	}
	return account, nil
}
