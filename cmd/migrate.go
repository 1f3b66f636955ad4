package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/mail-gateway/internal/app"
	"github.com/jmehdipour/mail-gateway/internal/config"
	"github.com/jmehdipour/mail-gateway/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the queue tables (and the ClickHouse event table when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := app.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := migrate(cmd.Context(), sqlDB, cfg.Database.Driver); err != nil {
			return err
		}
		fmt.Printf(">> %s migration complete\n", cfg.Database.Driver)

		ch, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		if ch == nil {
			return nil
		}
		defer ch.Close()

		if err := migrate(cmd.Context(), ch, "clickhouse"); err != nil {
			return err
		}
		fmt.Println(">> clickhouse migration complete")
		return nil
	},
}

// migrate runs the embedded scripts one statement at a time; ClickHouse rejects batches.
func migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	scripts, err := migrations.Scripts(driver)
	if err != nil {
		return err
	}

	for _, script := range scripts {
		for _, stmt := range statements(script) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

func statements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
