package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/enum"
)

// ProductCatalog returns the current menu entry for a product. Only the price
// at order time is kept on the order.
type ProductCatalog interface {
	Product(ctx context.Context, tenantID, productID uuid.UUID) (database.Product, error)
}

// DiscountResolver turns a promo code into a discount amount for a subtotal.
type DiscountResolver interface {
	Discount(ctx context.Context, tenantID uuid.UUID, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// SettingsProvider returns the tenant's floor and rate configuration.
type SettingsProvider interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (database.RestaurantSettings, error)
}

// Catalog implements the three collaborator interfaces on top of the
// products, promo_codes and restaurant_settings tables.
type Catalog struct {
	store              CatalogStore
	defaultTotalTables int32
}

func NewCatalog(store CatalogStore, defaultTotalTables int) *Catalog {
	return &Catalog{store: store, defaultTotalTables: int32(defaultTotalTables)}
}

func (c *Catalog) Product(ctx context.Context, tenantID, productID uuid.UUID) (database.Product, error) {
	p, err := c.store.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Product{}, ErrProductNotFound
		}
		return database.Product{}, fmt.Errorf("get product: %w", err)
	}
	if !p.IsActive {
		return database.Product{}, ErrProductNotFound
	}
	return p, nil
}

// Discount resolves code against the tenant's promo codes. Codes are
// case-insensitive and stored upper-case.
func (c *Catalog) Discount(ctx context.Context, tenantID uuid.UUID, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	promo, err := c.store.GetPromoCode(ctx, tenantID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUnknownPromoCode
		}
		return decimal.Zero, fmt.Errorf("get promo code: %w", err)
	}
	if !promo.IsActive {
		return decimal.Zero, ErrUnknownPromoCode
	}

	switch string(promo.DiscountType) {
	case enum.DiscountTypePercentage:
		return subtotal.Mul(promo.Value).Div(decimal.NewFromInt(100)).Round(0), nil
	case enum.DiscountTypeFixed:
		return promo.Value, nil
	}
	return decimal.Zero, ErrUnknownPromoCode
}

// Settings falls back to the configured table count and zero rates for
// tenants that never saved settings.
func (c *Catalog) Settings(ctx context.Context, tenantID uuid.UUID) (database.RestaurantSettings, error) {
	s, err := c.store.GetRestaurantSettings(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantSettings{
				TenantID:    tenantID,
				TotalTables: c.defaultTotalTables,
				TaxRate:     decimal.Zero,
				ServiceRate: decimal.Zero,
			}, nil
		}
		return database.RestaurantSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// orderTotals holds the computed money header of an order.
type orderTotals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ServiceCharge decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// computeTotals applies the discount before service charge and tax. The
// discount is clamped to [0, subtotal]; service and tax are rounded to whole
// minor units.
func computeTotals(lines []database.OrderLine, discount decimal.Decimal, settings database.RestaurantSettings) orderTotals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	taxable := subtotal.Sub(discount)
	service := taxable.Mul(settings.ServiceRate).Round(0)
	tax := taxable.Mul(settings.TaxRate).Round(0)

	return orderTotals{
		Subtotal:      subtotal,
		Discount:      discount,
		ServiceCharge: service,
		Tax:           tax,
		Total:         taxable.Add(service).Add(tax),
	}
}

func (t orderTotals) applyTo(o *database.Order) {
	o.Subtotal = t.Subtotal
	o.DiscountAmount = t.Discount
	o.ServiceChargeAmount = t.ServiceCharge
	o.TaxAmount = t.Tax
	o.TotalAmount = t.Total
}
