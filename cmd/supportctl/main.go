package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/database"
	"github.com/d60-Lab/supportdesk/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg  *config.Config
	db   *gorm.DB
	auth service.AuthService
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	return &env{cfg: cfg, db: db, auth: service.NewAuthService(repository.NewUserRepository(db), tokens)}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supportctl",
		Short:         "Support desk administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newUserCmd(), newTokenCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			if err := repository.Migrate(e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}

	var (
		password string
		name     string
		admin    bool
	)
	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			u, err := e.auth.CreateUser(context.Background(), service.NewUserInput{
				Email:    args[0],
				Password: password,
				FullName: name,
				Admin:    admin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) admin=%t\n", u.Email, u.ID, u.IsAdmin)
			return nil
		},
	}
	create.Flags().StringVarP(&password, "password", "p", "", "password (at least 8 characters)")
	create.Flags().StringVar(&name, "name", "", "full name")
	create.Flags().BoolVar(&admin, "admin", false, "grant admin")
	_ = create.MarkFlagRequired("password")

	var revoke bool
	setAdmin := &cobra.Command{
		Use:   "set-admin <email>",
		Short: "Grant or revoke admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			if err := e.auth.SetAdmin(context.Background(), args[0], !revoke); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%t\n", args[0], !revoke)
			return nil
		},
	}
	setAdmin.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")

	var unban bool
	ban := &cobra.Command{
		Use:   "ban <email>",
		Short: "Ban or unban a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			if err := e.auth.SetBanned(context.Background(), args[0], !unban); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s banned=%t\n", args[0], !unban)
			return nil
		},
	}
	ban.Flags().BoolVar(&unban, "unban", false, "lift the ban")

	user.AddCommand(create, setAdmin, ban)
	return user
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <email>",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			res, err := e.auth.IssueToken(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.AccessToken)
			return nil
		},
	}
}
