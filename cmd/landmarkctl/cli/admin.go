package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage back-office accounts",
		Long:  "Create, list, unlock and enable or disable admin accounts without going through the HTTP API.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminUnlockCmd())
	cmd.AddCommand(newAdminStatusCmd("deactivate", false))
	cmd.AddCommand(newAdminStatusCmd("activate", true))

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email       string
		password    string
		name        string
		role        string
		permissions string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  landmarkctl admin create --email owner@example.com --name Owner --role super_admin
  landmarkctl admin create --email sales@example.com --role editor --permissions view_inquiries,manage_inquiries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = promptPassword(cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			profile, err := e.svc.Create(cmd.Context(), nil, services.CreateAdminInput{
				Name:        name,
				Email:       email,
				Password:    password,
				Role:        role,
				Permissions: parsePermissions(permissions),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (%s)\n", profile.Role, profile.Email, profile.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&role, "role", models.RoleEditor, "super_admin, admin or editor")
	cmd.Flags().StringVar(&permissions, "permissions", "", "Comma-separated permissions (role defaults if omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// parsePermissions splits a comma list. An empty flag yields nil so the
// role's defaults apply.
func parsePermissions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var perms []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			admins, err := e.svc.List(cmd.Context(), 100, 0)
			if err != nil {
				return err
			}
			return printAdmins(cmd.OutOrStdout(), admins, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printAdmins(w io.Writer, admins []*models.AdminProfile, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(w, "No admin accounts. Use 'landmarkctl admin create' to add one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tACTIVE\t2FA")
	for _, a := range admins {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Email, a.Name, a.Role, yesNo(a.IsActive), yesNo(a.TwoFactorEnabled))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ---------- admin unlock / activate / deactivate ----------

func newAdminUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock EMAIL",
		Short: "Clear failed-login lockout for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, args[0], func(ctx context.Context, e *env, admin *models.Admin) error {
				if err := e.svc.Unlock(ctx, nil, admin.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s\n", admin.Email)
				return nil
			})
		},
	}
}

func newAdminStatusCmd(use string, active bool) *cobra.Command {
	short := "Disable an account and revoke its refresh tokens"
	if active {
		short = "Re-enable a disabled account"
	}
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, args[0], func(ctx context.Context, e *env, admin *models.Admin) error {
				if err := e.svc.SetActive(ctx, nil, admin.ID, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active=%t\n", admin.Email, active)
				return nil
			})
		},
	}
}

func withAdmin(cmd *cobra.Command, email string, fn func(ctx context.Context, e *env, admin *models.Admin) error) error {
	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	admin, err := e.admins.GetByEmail(cmd.Context(), email)
	if err != nil {
		return fmt.Errorf("no admin with email %q: %w", email, err)
	}
	return fn(cmd.Context(), e, admin)
}
