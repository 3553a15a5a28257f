package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trialscore/trialscore/internal/domain/identity"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

// openIdentityService returns the account service used by the admin
// subcommands and a function releasing its resources. Tests replace it.
var openIdentityService = func(ctx context.Context) (*identity.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewCenterRepoPG(pool),
		auth.NewPasswordHasher(cfg.BcryptCost),
	)
	return svc, pool.Close, nil
}

func withIdentityService(cmd *cobra.Command, fn func(ctx context.Context, svc *identity.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openIdentityService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func requireFlags(cmd *cobra.Command, names ...string) (map[string]string, error) {
	vals := make(map[string]string, len(names))
	for _, name := range names {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			return nil, fmt.Errorf("--%s is required", name)
		}
		vals[name] = v
	}
	return vals, nil
}

func centerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "center",
		Short: "Manage trial centers",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a trial center",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := requireFlags(cmd, "code", "name")
			if err != nil {
				return err
			}
			return withIdentityService(cmd, func(ctx context.Context, svc *identity.Service) error {
				c, err := svc.CreateCenter(ctx, identity.CreateCenterInput{Code: f["code"], Name: f["name"]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Center %s created.\n", c.Code)
				return nil
			})
		},
	}
	createCmd.Flags().String("code", "", "Center code")
	createCmd.Flags().String("name", "", "Center name")
	cmd.AddCommand(createCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := requireFlags(cmd, "username", "password", "role", "center")
			if err != nil {
				return err
			}
			return withIdentityService(cmd, func(ctx context.Context, svc *identity.Service) error {
				u, err := svc.CreateUser(ctx, identity.CreateUserInput{
					Username:   f["username"],
					Password:   f["password"],
					Role:       f["role"],
					CenterCode: f["center"],
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s created with id %d.\n", u.Username, u.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", "", "agent, central_reader or super_admin")
	createCmd.Flags().String("center", "", "Center code")
	cmd.AddCommand(createCmd)

	passwordCmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := requireFlags(cmd, "username", "password")
			if err != nil {
				return err
			}
			return withIdentityService(cmd, func(ctx context.Context, svc *identity.Service) error {
				u, err := svc.GetUserByUsername(ctx, f["username"])
				if err != nil {
					return err
				}
				if err := svc.SetPassword(ctx, u.ID, f["password"]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s.\n", u.Username)
				return nil
			})
		},
	}
	passwordCmd.Flags().String("username", "", "Login name")
	passwordCmd.Flags().String("password", "", "New password")
	cmd.AddCommand(passwordCmd)

	roleCmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change a user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := requireFlags(cmd, "username", "role")
			if err != nil {
				return err
			}
			return withIdentityService(cmd, func(ctx context.Context, svc *identity.Service) error {
				u, err := svc.GetUserByUsername(ctx, f["username"])
				if err != nil {
					return err
				}
				if err := svc.SetRole(ctx, u.ID, f["role"]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Role of %s set to %s.\n", u.Username, f["role"])
				return nil
			})
		},
	}
	roleCmd.Flags().String("username", "", "Login name")
	roleCmd.Flags().String("role", "", "agent, central_reader or super_admin")
	cmd.AddCommand(roleCmd)

	return cmd
}
