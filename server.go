package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/middlewares"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/agrifocus/farmbooks_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = "8080"

var tracer = otel.Tracer("farmbooks-backend")

func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Request.Method + " " + c.FullPath()
		ctx, span := tracer.Start(c.Request.Context(), name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"field":          "gin",
				"path":           c.Request.URL.Path,
				"correlation_id": cid,
			}).Error(ginErr.Error())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; drain gracefully.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness; the process starts
		// serving before the DB connection is up.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(tracingMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())

	api := r.Group("/api/v1", middlewares.RequireSession())
	{
		// Reference data.
		api.POST("/parties", createHandler(models.CreateParty))
		api.POST("/warehouses", createHandler(models.CreateWarehouse))
		api.POST("/items", createHandler(models.CreateItem))
		api.POST("/machines", createHandler(models.CreateMachine))
		api.POST("/land-parcels", createHandler(models.CreateLandParcel))
		api.POST("/projects", createHandler(models.CreateProject))
		api.POST("/crop-cycles", createHandler(models.CreateCropCycle))
		api.POST("/crop-cycles/:id/parcels", allocateParcelHandler())

		// Documents: draft, then post, then (maybe) reverse.
		api.POST("/work-logs", createHandler(models.CreateWorkLog))
		api.POST("/work-logs/:id/post", postDocHandler(workflow.PostWorkLog))
		api.POST("/work-logs/:id/reverse", reverseDocHandler(workflow.ReverseWorkLog))

		api.POST("/crop-activities", createHandler(models.CreateCropActivity))
		api.POST("/crop-activities/:id/post", postDocHandler(workflow.PostCropActivity))
		api.POST("/crop-activities/:id/reverse", reverseDocHandler(workflow.ReverseCropActivity))

		api.POST("/goods-receipts", createHandler(models.CreateGoodsReceipt))
		api.POST("/goods-receipts/:id/post", postDocHandler(workflow.PostGoodsReceipt))
		api.POST("/goods-receipts/:id/reverse", reverseDocHandler(workflow.ReverseGoodsReceipt))

		api.POST("/inventory-issues", createHandler(models.CreateInventoryIssue))
		api.POST("/inventory-issues/:id/post", postDocHandler(workflow.PostInventoryIssue))
		api.POST("/inventory-issues/:id/reverse", reverseDocHandler(workflow.ReverseInventoryIssue))

		api.POST("/stock-transfers", createHandler(models.CreateStockTransfer))
		api.POST("/stock-transfers/:id/post", postDocHandler(workflow.PostStockTransfer))
		api.POST("/stock-transfers/:id/reverse", reverseDocHandler(workflow.ReverseStockTransfer))

		api.POST("/inventory-adjustments", createHandler(models.CreateInventoryAdjustment))
		api.POST("/inventory-adjustments/:id/post", postDocHandler(workflow.PostInventoryAdjustment))
		api.POST("/inventory-adjustments/:id/reverse", reverseDocHandler(workflow.ReverseInventoryAdjustment))

		api.POST("/harvests", createHandler(models.CreateHarvest))
		api.POST("/harvests/:id/post", postDocHandler(workflow.PostHarvest))
		api.POST("/harvests/:id/reverse", reverseDocHandler(workflow.ReverseHarvest))

		api.POST("/machinery-jobs", createHandler(models.CreateMachineryJob))
		api.POST("/machinery-jobs/:id/post", postDocHandler(workflow.PostMachineryJob))
		api.POST("/machinery-jobs/:id/reverse", reverseDocHandler(workflow.ReverseMachineryJob))

		api.POST("/machinery-services", createHandler(models.CreateMachineryService))
		api.POST("/machinery-services/:id/post", postDocHandler(workflow.PostMachineryService))
		api.POST("/machinery-services/:id/reverse", reverseDocHandler(workflow.ReverseMachineryService))

		api.POST("/machinery-charges", createHandler(models.CreateMachineryCharge))
		api.POST("/machinery-charges/:id/post", postDocHandler(workflow.PostMachineryCharge))
		api.POST("/machinery-charges/:id/reverse", reverseDocHandler(workflow.ReverseMachineryCharge))

		api.POST("/sales", createHandler(models.CreateSale))
		api.POST("/sales/:id/post", postDocHandler(workflow.PostSale))
		api.POST("/sales/:id/reverse", reverseDocHandler(workflow.ReverseSale))

		api.POST("/advances", createHandler(models.CreateAdvance))
		api.POST("/advances/:id/post", postDocHandler(workflow.PostAdvance))
		api.POST("/advances/:id/reverse", reverseDocHandler(workflow.ReverseAdvance))

		api.POST("/payments", createHandler(models.CreatePayment))
		api.POST("/payments/:id/post", postDocHandler(workflow.PostPayment))
		api.POST("/payments/:id/reverse", reverseDocHandler(workflow.ReversePayment))

		api.POST("/journal-entries", createHandler(models.CreateJournalEntry))
		api.POST("/journal-entries/:id/post", postDocHandler(workflow.PostJournalEntry))
		api.POST("/journal-entries/:id/reverse", reverseDocHandler(workflow.ReverseJournalEntry))

		// Payment allocation.
		api.POST("/payments/:id/allocations/fifo", allocateFIFOHandler())
		api.POST("/payments/:id/allocations/manual", allocateManualHandler())
		api.POST("/payments/:id/allocations/unapply", unapplyPaymentHandler())
		api.POST("/allocations/:id/unapply", unapplyAllocationHandler())

		// Settlement.
		api.GET("/crop-cycles/:id/settlement-preview", settlementPreviewHandler())
		api.POST("/settlements", postSettlementHandler())
		api.POST("/settlements/:id/reverse", reverseDocHandler(workflow.ReverseSettlement))

		// Accounting periods.
		api.GET("/periods", listPeriodsHandler())
		api.POST("/periods/:id/close", periodStatusHandler(models.ClosePeriod))
		api.POST("/periods/:id/reopen", periodStatusHandler(models.ReopenPeriod))

		// Reports.
		api.GET("/reports/trial-balance", trialBalanceHandler())
		api.GET("/reports/party-statement", partyStatementHandler())
		api.GET("/reports/party-statement.xlsx", partyStatementExportHandler())
		api.GET("/reports/stock-on-hand", stockOnHandHandler())
	}

	ops := r.Group("/internal/ops", middlewares.RequireSession(), middlewares.RequireAdmin())
	{
		ops.POST("/outbox/replay", outboxReplayHandler())
		ops.POST("/inventory/rebuild", inventoryRebuildHandler())
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	go func() {
		logger.WithField("field", "server").Info("listening on :" + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("field", "server").Fatal(err.Error())
		}
	}()

	// Dependencies come up after the listener so the startup probe passes;
	// the readiness gate returns 503 until then.
	go func() {
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
		config.ConnectRedisWithRetry()

		// The dispatcher usually runs as its own binary; small deployments
		// can fold it into the API process.
		if strings.EqualFold(strings.TrimSpace(os.Getenv("OUTBOX_DISPATCHER_ENABLED")), "true") {
			dispatcher := workflow.NewOutboxDispatcher(logger)
			go dispatcher.Run(sigCtx)
		}
	}()

	<-sigCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithField("field", "server").Error("shutdown: " + err.Error())
	}
}
