// inventory-rebuild replays every stock movement for a tenant and rewrites
// the stock balance rows from scratch. Use it after manual data surgery or
// when a balance is suspected to have drifted from its movement history.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/inventory-rebuild --tenant-id t1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"github.com/agrifocus/farmbooks_backend/workflow"
)

func main() {
	tenantId := flag.String("tenant-id", "", "Required: tenant id")
	flag.Parse()

	if strings.TrimSpace(*tenantId) == "" {
		fmt.Fprintln(os.Stderr, "--tenant-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetTenantIdInContext(context.Background(), *tenantId)
	ctx = utils.SetUserNameInContext(ctx, "inventory-rebuild")

	if err := workflow.RebuildStockBalances(ctx, *tenantId); err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("stock balances rebuilt for tenant", *tenantId)
}
