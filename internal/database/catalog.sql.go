package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func (q *Queries) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (Product, error) {
	var (
		p     Product
		price pgtype.Numeric
	)
	err := q.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, price, is_active FROM products WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&p.ID, &p.TenantID, &p.Name, &price, &p.IsActive)
	if err != nil {
		return Product{}, err
	}
	p.Price = numericToDecimal(price)
	return p, nil
}

func (q *Queries) CreateProduct(ctx context.Context, p Product) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO products (id, tenant_id, name, price, is_active) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TenantID, p.Name, decimalToNumeric(p.Price), p.IsActive,
	)
	return err
}

func (q *Queries) GetPromoCode(ctx context.Context, tenantID uuid.UUID, code string) (PromoCode, error) {
	var (
		p     PromoCode
		dt    string
		value pgtype.Numeric
	)
	err := q.db.QueryRow(ctx,
		`SELECT tenant_id, code, discount_type, value, is_active
		FROM promo_codes WHERE tenant_id = $1 AND code = $2`,
		tenantID, code,
	).Scan(&p.TenantID, &p.Code, &dt, &value, &p.IsActive)
	if err != nil {
		return PromoCode{}, err
	}
	p.DiscountType = DiscountType(dt)
	p.Value = numericToDecimal(value)
	return p, nil
}

func (q *Queries) UpsertPromoCode(ctx context.Context, p PromoCode) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO promo_codes (tenant_id, code, discount_type, value, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, code) DO UPDATE
		SET discount_type = EXCLUDED.discount_type, value = EXCLUDED.value, is_active = EXCLUDED.is_active`,
		p.TenantID, p.Code, string(p.DiscountType), decimalToNumeric(p.Value), p.IsActive,
	)
	return err
}

func (q *Queries) GetRestaurantSettings(ctx context.Context, tenantID uuid.UUID) (RestaurantSettings, error) {
	var (
		s                    RestaurantSettings
		taxRate, serviceRate pgtype.Numeric
	)
	err := q.db.QueryRow(ctx,
		`SELECT tenant_id, total_tables, tax_rate, service_rate FROM restaurant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&s.TenantID, &s.TotalTables, &taxRate, &serviceRate)
	if err != nil {
		return RestaurantSettings{}, err
	}
	s.TaxRate = numericToDecimal(taxRate)
	s.ServiceRate = numericToDecimal(serviceRate)
	return s, nil
}

func (q *Queries) UpsertRestaurantSettings(ctx context.Context, s RestaurantSettings) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO restaurant_settings (tenant_id, total_tables, tax_rate, service_rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE
		SET total_tables = EXCLUDED.total_tables, tax_rate = EXCLUDED.tax_rate,
			service_rate = EXCLUDED.service_rate, updated_at = now()`,
		s.TenantID, s.TotalTables, decimalToNumeric(s.TaxRate), decimalToNumeric(s.ServiceRate),
	)
	return err
}
