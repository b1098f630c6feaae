package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/auth"
	"github.com/kiwari-pos/floorops/internal/config"
	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/enum"
	"github.com/kiwari-pos/floorops/internal/logging"
)

// seedNamespace derives stable product and user IDs so re-running the seed
// finds the rows it created before.
var seedNamespace = uuid.MustParse("6f1c58d2-4a37-4f0e-9d8c-2b1d0f0a7e11")

var products = []struct {
	name  string
	price int64
}{
	{"Nasi Bakar Ayam", 28000},
	{"Nasi Bakar Cumi", 32000},
	{"Sate Taichan", 25000},
	{"Es Teh Manis", 8000},
	{"Es Jeruk", 12000},
}

func main() {
	tenantFlag := flag.String("tenant", "", "Restaurant (tenant) ID; generated when empty")
	tables := flag.Int("tables", 12, "Number of dine-in tables")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev tokens")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	tenantID := uuid.New()
	if *tenantFlag != "" {
		if tenantID, err = uuid.Parse(*tenantFlag); err != nil {
			log.WithError(err).Fatal("invalid -tenant")
		}
	}

	ctx := context.Background()
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("unable to connect to database")
	}
	defer pool.Close()

	// Seed in a transaction (settings, products and promos or nothing)
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.WithError(err).Fatal("begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)
	if err := seed(ctx, q, tenantID, int32(*tables), log); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Fatal("commit")
	}

	log.WithField("tenant_id", tenantID).Info("seed completed successfully")
	printTokens(cfg.JWTSecret, tenantID, *tokenTTL, log)
}

func seed(ctx context.Context, q *database.Queries, tenantID uuid.UUID, tables int32, log logrus.FieldLogger) error {
	err := q.UpsertRestaurantSettings(ctx, database.RestaurantSettings{
		TenantID:    tenantID,
		TotalTables: tables,
		TaxRate:     decimal.RequireFromString("0.11"),
		ServiceRate: decimal.RequireFromString("0.05"),
	})
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	for _, p := range products {
		id := uuid.NewSHA1(seedNamespace, []byte(tenantID.String()+"/product/"+p.name))
		_, err := q.GetProduct(ctx, tenantID, id)
		if err == nil {
			log.WithField("product", p.name).Info("product already exists, skipping")
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check product %q: %w", p.name, err)
		}
		err = q.CreateProduct(ctx, database.Product{
			ID:       id,
			TenantID: tenantID,
			Name:     p.name,
			Price:    decimal.NewFromInt(p.price),
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("create product %q: %w", p.name, err)
		}
		log.WithFields(logrus.Fields{"product": p.name, "product_id": id}).Info("created product")
	}

	promos := []database.PromoCode{
		{TenantID: tenantID, Code: "HEMAT10", DiscountType: database.DiscountType(enum.DiscountTypePercentage), Value: decimal.NewFromInt(10), IsActive: true},
		{TenantID: tenantID, Code: "POTONG5K", DiscountType: database.DiscountType(enum.DiscountTypeFixed), Value: decimal.NewFromInt(5000), IsActive: true},
	}
	for _, p := range promos {
		if err := q.UpsertPromoCode(ctx, p); err != nil {
			return fmt.Errorf("upsert promo %q: %w", p.Code, err)
		}
	}
	return nil
}

// printTokens logs one dev bearer token per staff role.
func printTokens(secret string, tenantID uuid.UUID, ttl time.Duration, log logrus.FieldLogger) {
	roles := []string{enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleWaiter, enum.UserRoleKitchen}
	for _, role := range roles {
		userID := uuid.NewSHA1(seedNamespace, []byte(tenantID.String()+"/user/"+role))
		token, err := auth.GenerateTokenTTL(secret, userID, tenantID, role, ttl)
		if err != nil {
			log.WithError(err).WithField("role", role).Error("generate token")
			continue
		}
		fmt.Printf("%-8s %s\n", role, token)
	}
}
