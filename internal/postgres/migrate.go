package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type SeedProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

var DemoProducts = []SeedProduct{
	{Name: "Mechanical Keyboard", Description: "87-key, brown switches", Price: decimal.RequireFromString("100.00"), Stock: 10},
	{Name: "Wireless Mouse", Description: "2.4GHz, 6 buttons", Price: decimal.RequireFromString("35.50"), Stock: 25},
	{Name: "USB-C Hub", Description: "7 ports, 100W passthrough", Price: decimal.RequireFromString("49.90"), Stock: 15},
	{Name: "Monitor Arm", Description: "Single arm, gas spring", Price: decimal.RequireFromString("89.00"), Stock: 5},
}

// Seed inserts products only into an empty catalog and reports how many it wrote.
func Seed(ctx context.Context, db *pgxpool.Pool, products []SeedProduct) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, p := range products {
		if _, err := db.Exec(ctx, `
			INSERT INTO products(name, description, price, stock, image_url)
			VALUES ($1, $2, $3, $4, $5)`,
			p.Name, p.Description, p.Price, p.Stock, p.ImageURL,
		); err != nil {
			return 0, fmt.Errorf("seed %q: %w", p.Name, err)
		}
	}
	return len(products), nil
}
