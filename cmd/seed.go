package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmehdipour/mail-gateway/internal/app"
	"github.com/jmehdipour/mail-gateway/internal/config"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo email types",
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

		log.Println(">> Seeding demo email types...")
		if err := seedEmailTypes(cmd.Context(), sqlDB, repository.NewEmailTypesRepository(sqlDB)); err != nil {
			return err
		}
		log.Println(">> Seed completed")
		return nil
	},
}

type seedType struct {
	name        string
	to, cc, bcc []string
}

var demoEmailTypes = []seedType{
	{name: "welcome", bcc: []string{"audit@example.com"}},
	{name: "password_reset"},
	{name: "daily_report", to: []string{"ops@example.com"}, cc: []string{"lead@example.com"}},
	{name: "invoice", bcc: []string{"billing@example.com", "audit@example.com"}},
}

// seedEmailTypes upserts the demo types in one transaction (idempotent).
func seedEmailTypes(ctx context.Context, dbx *sqlx.DB, repo repository.EmailTypesRepository) error {
	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, st := range demoEmailTypes {
		et := model.EmailType{Type: st.name}
		if et.ToAddress, err = addressColumn(st.to); err != nil {
			return err
		}
		if et.CcAddresses, err = addressColumn(st.cc); err != nil {
			return err
		}
		if et.BccAddresses, err = addressColumn(st.bcc); err != nil {
			return err
		}
		if err := repo.Upsert(ctx, tx, et); err != nil {
			return fmt.Errorf("upsert email type %q: %w", st.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit email types: %w", err)
	}
	return nil
}

// addressColumn stores an empty list as NULL.
func addressColumn(list []string) ([]byte, error) {
	if len(list) == 0 {
		return nil, nil
	}
	return json.Marshal(list)
}
