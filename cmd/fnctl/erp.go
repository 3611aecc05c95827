package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/biso/functions/internal/config"
	"github.com/biso/functions/internal/handler"
	"github.com/biso/functions/internal/logging"
	"github.com/biso/functions/internal/twentyfour"
)

// erpCmd reads reference data from the ERP, for setting up dimensions,
// accounts and departments.
func erpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erp",
		Short: "Read reference data from 24SevenOffice",
	}
	cmd.AddCommand(erpList("accounts", "List ledger accounts", func(ctx context.Context, s *twentyfour.Session) (any, error) {
		return s.Accounts(ctx)
	}))
	cmd.AddCommand(erpList("tax-codes", "List tax codes", func(ctx context.Context, s *twentyfour.Session) (any, error) {
		return s.TaxCodes(ctx)
	}))
	cmd.AddCommand(erpList("entry-types", "List journal entry types", func(ctx context.Context, s *twentyfour.Session) (any, error) {
		return s.EntryTypes(ctx)
	}))
	cmd.AddCommand(erpList("departments", "List departments", func(ctx context.Context, s *twentyfour.Session) (any, error) {
		return s.Departments(ctx)
	}))
	cmd.AddCommand(erpList("categories", "List the customer category tree", func(ctx context.Context, s *twentyfour.Session) (any, error) {
		return s.CustomerCategoryTree(ctx)
	}))
	return cmd
}

func erpList(use, short string, list func(context.Context, *twentyfour.Session) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(config.SectionTwentyFour); err != nil {
				return err
			}
			d := handler.NewDeps(cfg, logging.NewWithWriter(cmd.ErrOrStderr(), "fnctl", cfg.Log.Level))

			session, err := d.ERP.Login(cmd.Context())
			if err != nil {
				return err
			}
			out, err := list(cmd.Context(), session)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
