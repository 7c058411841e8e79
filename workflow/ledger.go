package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnbalancedPosting = errors.New("posting group debits and credits do not balance")
	ErrAlreadyPosted     = errors.New("document is already posted")
	ErrNotPosted         = errors.New("document is not posted")
	ErrAlreadyReversed   = errors.New("document is already reversed")
)

// balanceTolerance is the largest debit/credit drift a posting group may
// carry, in currency units.
var balanceTolerance = decimal.NewFromFloat(0.01)

// LedgerLine is one planned ledger entry, addressed by system account code
// or, for manual journal lines, directly by account id.
type LedgerLine struct {
	AccountCode string
	AccountId   int
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// AllocationLine is one planned allocation row. RuleSnapshot is marshalled
// to JSON at commit time.
type AllocationLine struct {
	CropCycleId  *int
	PartyId      *int
	MachineId    *int
	Type         models.AllocationType
	Amount       decimal.Decimal
	RuleSnapshot map[string]interface{}
}

// MovementLine is one planned stock movement, applied through the moving
// average engine at commit time.
type MovementLine struct {
	WarehouseId  int
	ItemId       int
	MovementType models.MovementType
	QtyDelta     decimal.Decimal
	ValueDelta   decimal.Decimal
	UnitCost     decimal.Decimal
}

// LedgerPlan is everything one posting writes: the balanced entry set, the
// allocation rows, and the stock movements. Building the plan is pure
// computation; CommitPlan persists it atomically.
type LedgerPlan struct {
	SourceType       models.PostingSourceType
	SourceId         int
	CropCycleId      *int
	PostingDate      time.Time
	IdempotencyKey   *string
	ReversalOf       *int
	CorrectionReason *string
	Lines            []LedgerLine
	Allocations      []AllocationLine
	Movements        []MovementLine
}

func (p *LedgerPlan) addLine(code string, debit, credit decimal.Decimal, description string) {
	p.Lines = append(p.Lines, LedgerLine{AccountCode: code, Debit: debit, Credit: credit, Description: description})
}

func (p *LedgerPlan) totalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

func (p *LedgerPlan) totalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// validate rejects malformed plans before anything touches the database.
func (p *LedgerPlan) validate() error {
	if len(p.Lines) == 0 {
		return errors.New("posting plan has no ledger lines")
	}
	for _, l := range p.Lines {
		if l.AccountCode == "" && l.AccountId == 0 {
			return errors.New("ledger line has no account")
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return errors.New("ledger line amounts cannot be negative")
		}
		if l.Debit.IsPositive() && l.Credit.IsPositive() {
			return errors.New("ledger line cannot carry both debit and credit")
		}
	}
	if !p.totalDebit().Sub(p.totalCredit()).Abs().LessThanOrEqual(balanceTolerance) {
		return ErrUnbalancedPosting
	}
	for _, a := range p.Allocations {
		if a.Amount.IsNegative() {
			return errors.New("allocation amounts cannot be negative")
		}
	}
	return nil
}

// findExistingGroup returns the posting group most recently recorded for
// the source, if any.
func findExistingGroup(ctx context.Context, tx *gorm.DB, tenantId string, sourceType models.PostingSourceType, sourceId int) (*models.PostingGroup, error) {
	var group models.PostingGroup
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantId, sourceType, sourceId).
		Order("id desc").
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// CommitPlan persists the plan inside the caller's transaction: posting
// group, ledger entries, allocation rows, stock movements, outbox event.
// A duplicate idempotency key insert is resolved by returning the already
// committed group with created=false; the caller decides whether that is an
// error for its flow.
func CommitPlan(ctx context.Context, tx *gorm.DB, tenantId string, plan *LedgerPlan) (*models.PostingGroup, bool, error) {
	if err := plan.validate(); err != nil {
		return nil, false, err
	}
	// Reversal plans are gated by AssertReversalAllowed before they reach
	// here; the plain period gate would reject the same-day exception.
	if plan.ReversalOf == nil {
		if err := AssertPostingAllowed(ctx, tx, tenantId, plan.PostingDate); err != nil {
			return nil, false, err
		}
	}

	tenant, err := models.GetTenantById(ctx, tenantId)
	if err != nil {
		return nil, false, err
	}

	seqNo, err := utils.GetSequence[models.PostingGroup](ctx, tenantId)
	if err != nil {
		return nil, false, err
	}

	group := models.PostingGroup{
		TenantId:                 tenantId,
		CropCycleId:              plan.CropCycleId,
		SourceType:               plan.SourceType,
		SourceId:                 plan.SourceId,
		SequenceNo:               seqNo,
		GroupNumber:              fmt.Sprintf("PG-%d", seqNo),
		PostingDate:              plan.PostingDate,
		CurrencyCode:             tenant.CurrencyCode,
		IdempotencyKey:           plan.IdempotencyKey,
		ReversalOfPostingGroupId: plan.ReversalOf,
		CorrectionReason:         plan.CorrectionReason,
	}
	for _, l := range plan.Lines {
		accountId := l.AccountId
		if l.AccountCode != "" {
			account, err := models.GetAccountByCode(tx, ctx, tenantId, l.AccountCode)
			if err != nil {
				return nil, false, err
			}
			accountId = account.ID
		}
		group.LedgerEntries = append(group.LedgerEntries, models.LedgerEntry{
			TenantId:     tenantId,
			AccountId:    accountId,
			EntryDate:    plan.PostingDate,
			Description:  l.Description,
			DebitAmount:  l.Debit,
			CreditAmount: l.Credit,
			CurrencyCode: tenant.CurrencyCode,
		})
	}
	for _, a := range plan.Allocations {
		var snapshot []byte
		if a.RuleSnapshot != nil {
			snapshot, err = json.Marshal(a.RuleSnapshot)
			if err != nil {
				return nil, false, err
			}
		}
		group.AllocationRows = append(group.AllocationRows, models.AllocationRow{
			TenantId:       tenantId,
			CropCycleId:    a.CropCycleId,
			PartyId:        a.PartyId,
			MachineId:      a.MachineId,
			AllocationType: a.Type,
			Amount:         a.Amount,
			RuleSnapshot:   snapshot,
		})
	}

	if err := tx.WithContext(ctx).Create(&group).Error; err != nil {
		if plan.IdempotencyKey != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyErr(err)) {
			// Lost an idempotent race: surface the winner.
			var existing models.PostingGroup
			findErr := tx.WithContext(ctx).
				Where("tenant_id = ? AND idempotency_key = ?", tenantId, *plan.IdempotencyKey).
				First(&existing).Error
			if findErr != nil {
				return nil, false, findErr
			}
			return &existing, false, nil
		}
		return nil, false, err
	}

	for _, m := range plan.Movements {
		if err := applyMovement(ctx, tx, tenantId, &group, m); err != nil {
			return nil, false, err
		}
	}

	eventType := models.PostingEventPosted
	if plan.ReversalOf != nil {
		eventType = models.PostingEventReversed
	}
	if err := models.EnqueuePostingEvent(ctx, tx, &group, eventType); err != nil {
		return nil, false, err
	}

	return &group, true, nil
}
