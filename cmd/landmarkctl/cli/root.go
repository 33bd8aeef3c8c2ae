package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BradenHooton/landmark/internal/config"
	"github.com/BradenHooton/landmark/internal/database"
	"github.com/BradenHooton/landmark/internal/repositories"
	"github.com/BradenHooton/landmark/internal/services"
	pkgauth "github.com/BradenHooton/landmark/pkg/auth"
	pkglogger "github.com/BradenHooton/landmark/pkg/logger"
	"github.com/spf13/cobra"
)

var verbose bool

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landmarkctl",
		Short: "Operate the Landmark back office",
		Long: `landmarkctl manages the Landmark back-office database directly: schema
migrations, admin accounts and refresh-token housekeeping. It reads the same
DB_* settings (environment, .env or landmark.yaml) as the API server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newTokensCmd())

	return cmd
}

// env is what every subcommand needs once connected.
type env struct {
	db     *database.DB
	admins *repositories.AdminRepository
	tokens *repositories.RefreshTokenRepository
	svc    *services.AdminService
	logger *slog.Logger
}

func (e *env) Close() { e.db.Close() }

func newLogger() *slog.Logger {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	// operator commands run one statement at a time
	cfg.MaxConns, cfg.MinConns = 2, 0
	cfg.ApplicationName = "landmarkctl"

	logger := newLogger()
	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	admins := repositories.NewAdminRepository(db)
	tokens := repositories.NewRefreshTokenRepository(db)
	return &env{
		db:     db,
		admins: admins,
		tokens: tokens,
		svc:    services.NewAdminService(admins, tokens, pkgauth.DefaultBcryptCost, logger, pkglogger.NewAuditLogger(logger)),
		logger: logger,
	}, nil
}
