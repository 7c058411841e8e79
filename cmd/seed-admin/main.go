// seed-admin provisions a tenant (when --tenant-id is not given) and its
// admin user. The tenant comes up with the system chart of accounts and a
// primary warehouse, so it can post immediately.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/seed-admin \
//	  --tenant-name "Demo Farm" --phone +923001234567 --password 'changeme123'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/models"
	"github.com/agrifocus/farmbooks_backend/utils"
)

func main() {
	tenantId := flag.String("tenant-id", "", "Optional: existing tenant id; omit to create a tenant")
	tenantName := flag.String("tenant-name", "", "Tenant name (required when creating)")
	name := flag.String("name", "Admin", "Admin display name")
	phone := flag.String("phone", "", "Required: admin phone number")
	password := flag.String("password", "", "Required: admin password (min 8 chars)")
	flag.Parse()

	if strings.TrimSpace(*phone) == "" || strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--phone and --password are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	id := strings.TrimSpace(*tenantId)
	if id == "" {
		if strings.TrimSpace(*tenantName) == "" {
			fmt.Fprintln(os.Stderr, "--tenant-name is required when --tenant-id is not given")
			os.Exit(1)
		}
		tenant, err := models.CreateTenant(ctx, &models.NewTenant{Name: *tenantName})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create tenant: %v\n", err)
			os.Exit(1)
		}
		id = tenant.ID
		fmt.Println("created tenant", id)
	} else {
		if _, err := models.GetTenantById(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "tenant lookup failed: %v\n", err)
			os.Exit(1)
		}
	}

	ctx = utils.SetTenantIdInContext(ctx, id)
	ctx = utils.SetUserNameInContext(ctx, "seed-admin")

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     *name,
		Phone:    *phone,
		Password: *password,
		IsAdmin:  true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created admin user %d (%s) for tenant %s\n", user.ID, user.Phone, id)
}
