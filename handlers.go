package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/middlewares"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/agrifocus/farmbooks_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const sessionTTL = 24 * time.Hour

// domain errors a caller can act on surface as 422; everything else is a
// plain 400/404/500.
var unprocessableErrors = []error{
	workflow.ErrUnbalancedPosting,
	workflow.ErrAlreadyPosted,
	workflow.ErrNotPosted,
	workflow.ErrAlreadyReversed,
	workflow.ErrReversalOfReversal,
	workflow.ErrPeriodClosed,
	workflow.ErrInsufficientStock,
	workflow.ErrCycleAlreadySettled,
	workflow.ErrLossMakingCycle,
	workflow.ErrAdvanceOffsetDrift,
	workflow.ErrOverpayment,
	workflow.ErrPaymentNotPosted,
	workflow.ErrNothingToAllocate,
	workflow.ErrOverAllocation,
	workflow.ErrAllocationExceeded,
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	for _, known := range unprocessableErrors {
		if errors.Is(err, known) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	TenantId string `json:"tenant_id" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.AuthenticateUser(c.Request.Context(), req.TenantId, req.Phone, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		token := uuid.NewString()
		session := middlewares.Session{
			TenantId: user.TenantId,
			UserId:   user.ID,
			Phone:    user.Phone,
			IsAdmin:  user.IsAdmin,
		}
		if err := config.SetRedisObject("Token:"+token, session, sessionTTL); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
	}
}

// createHandler binds the JSON body to the document's input struct and
// persists a draft.
func createHandler[T any, I any](create func(ctx context.Context, input *I) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input I
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		doc, err := create(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

type postRequest struct {
	PostingDate *time.Time `json:"posting_date"`
}

func postDocHandler[T any](post func(ctx context.Context, id int, postingDate *time.Time) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req postRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		doc, err := post(c.Request.Context(), id, req.PostingDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type reverseRequest struct {
	ReversalDate *time.Time `json:"reversal_date"`
	Reason       string     `json:"reason" binding:"required"`
}

func reverseDocHandler(reverse func(ctx context.Context, id int, reversalDate *time.Time, reason string) (*models.PostingGroup, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req reverseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		group, err := reverse(c.Request.Context(), id, req.ReversalDate, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func allocateFIFOHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		allocations, err := workflow.AllocatePaymentFIFO(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allocations": allocations})
	}
}

type manualAllocationRequest struct {
	Lines []workflow.ManualAllocationLine `json:"lines" binding:"required"`
}

func allocateManualHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req manualAllocationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		allocations, err := workflow.AllocatePaymentManual(c.Request.Context(), id, req.Lines)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allocations": allocations})
	}
}

func unapplyPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		voided, err := workflow.UnapplyPaymentAllocations(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voided": voided})
	}
}

func unapplyAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		allocation, err := workflow.UnapplyAllocation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, allocation)
	}
}

func allocateParcelHandler() gin.HandlerFunc {
	type request struct {
		LandParcelId int             `json:"land_parcel_id" binding:"required"`
		Acres        decimal.Decimal `json:"acres" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input request
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		allocation, err := models.AllocateParcelAcreage(c.Request.Context(), id, input.LandParcelId, input.Acres)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, allocation)
	}
}

func settlementPreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		preview, err := workflow.PreviewSettlement(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func postSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.PostSettlementInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		settlement, err := workflow.PostSettlement(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, settlement)
	}
}

func listPeriodsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := dateRangeQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		periods, err := models.PaginatePeriods(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"periods": periods})
	}
}

func periodStatusHandler(setStatus func(ctx context.Context, id int) (*models.AccountingPeriod, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		period, err := setStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, period)
	}
}

func dateRangeQuery(c *gin.Context) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, errors.New("from must be YYYY-MM-DD")
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, errors.New("to must be YYYY-MM-DD")
		}
		to = &t
	}
	return from, to, nil
}

func trialBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		asOf := time.Now().UTC()
		if v := c.Query("as_of"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
				return
			}
			asOf = t
		}
		rows, err := models.GetAccountBalances(c.Request.Context(), tenantId, asOf)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"as_of": asOf.Format("2006-01-02"), "balances": rows})
	}
}

func partyStatementParams(c *gin.Context) (int, time.Time, time.Time, bool) {
	partyId, err := strconv.Atoi(c.Query("party_id"))
	if err != nil || partyId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "party_id is required"})
		return 0, time.Time{}, time.Time{}, false
	}
	from, to, err := dateRangeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, time.Time{}, time.Time{}, false
	}
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Now().UTC()
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	return partyId, start, end, true
}

func partyStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		partyId, from, to, ok := partyStatementParams(c)
		if !ok {
			return
		}
		rows, err := models.GetPartyStatement(c.Request.Context(), tenantId, partyId, from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows})
	}
}

func partyStatementExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partyId, from, to, ok := partyStatementParams(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="party-statement.xlsx"`)
		if err := models.ExportPartyStatement(c.Request.Context(), c.Writer, partyId, from, to); err != nil {
			_ = c.Error(err)
		}
	}
}

func stockOnHandHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var warehouseId, itemId *int
		if v := c.Query("warehouse_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid warehouse_id"})
				return
			}
			warehouseId = &id
		}
		if v := c.Query("item_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_id"})
				return
			}
			itemId = &id
		}
		balances, err := models.GetStockOnHand(c.Request.Context(), warehouseId, itemId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balances": balances})
	}
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		count, err := models.RequeueDeadPostingEvents(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": count})
	}
}

func inventoryRebuildHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		if err := workflow.RebuildStockBalances(c.Request.Context(), tenantId); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
