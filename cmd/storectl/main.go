package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-storefront-payments/internal/config"
	"github.com/ariefcatur/go-storefront-payments/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "storectl",
		Short: "Storefront database maintenance",
	}
	rootCmd.PersistentFlags().String("dsn", "", "postgres DSN (default $POSTGRES_DSN)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the products, orders and order_events tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *pgxpool.Pool) error {
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
				fmt.Println("schema up to date")
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog into an empty products table",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return withDB(cmd, func(ctx context.Context, db *pgxpool.Pool) error {
				if migrate {
					if err := postgres.Migrate(ctx, db); err != nil {
						return err
					}
				}
				n, err := postgres.Seed(ctx, db, postgres.DemoProducts)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Println("catalog not empty, nothing seeded")
					return nil
				}
				fmt.Printf("seeded %d products\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Bool("migrate", false, "apply the schema first")
	return cmd
}

func withDB(cmd *cobra.Command, fn func(context.Context, *pgxpool.Pool) error) error {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		dsn = config.Load().PostgresDSN
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, dsn, 2)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	return fn(ctx, db)
}
