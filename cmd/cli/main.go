package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"storefront/config"
	"storefront/internal/identity"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const usage = `usage: storefront-cli <command> [flags]

commands:
  migrate                                  apply database migrations
  add-user -email -password -role [-vendor-id]
                                           create a login for the local auth provider
  import -file snapshot.json               load vendors and products from a snapshot
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := run(ctx, db, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		db.Close()
		util.SyncLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, db *store.Store, command string, args []string) error {
	logger := util.GetLogger()

	switch command {
	case "migrate":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("Migrations applied")
		return nil

	case "add-user":
		fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
		email := fs.String("email", "", "login email")
		password := fs.String("password", "", "plain-text password, stored as a bcrypt hash")
		role := fs.String("role", models.RoleCustomer, "customer, vendor or admin")
		vendorID := fs.String("vendor-id", "", "vendor linked to a vendor account")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return fmt.Errorf("-email and -password are required")
		}

		var vendor *string
		if *vendorID != "" {
			vendor = models.StringPtr(*vendorID)
		}
		user, err := identity.NewUser(uuid.New().String(), strings.ToLower(*email), *password, *role, vendor)
		if err != nil {
			return err
		}
		if err := db.CreateUser(ctx, user); err != nil {
			return err
		}
		logger.Info("User created", zap.String("email", user.Email), zap.String("role", user.Role))
		return nil

	case "import":
		fs := flag.NewFlagSet("import", flag.ContinueOnError)
		file := fs.String("file", "", "snapshot JSON file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return fmt.Errorf("-file is required")
		}

		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer f.Close()

		snap, err := readSnapshot(f)
		if err != nil {
			return err
		}
		vendors, products, err := importSnapshot(ctx, db, snap)
		if err != nil {
			return err
		}
		logger.Info("Snapshot imported", zap.Int("vendors", vendors), zap.Int("products", products))
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
