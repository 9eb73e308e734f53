package main

import (
	"errors"
	"fmt"

	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func newAdminCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage console accounts",
	}
	cmd.AddCommand(newAdminCreateCmd(root))
	cmd.AddCommand(newAdminStatusCmd(root, "disable", true))
	cmd.AddCommand(newAdminStatusCmd(root, "enable", false))
	cmd.AddCommand(newAdminListCmd(root))
	return cmd
}

func (o *rootOptions) openAdmin(cmd *cobra.Command) (*app, error) {
	if o.inMemory {
		return nil, errors.New("admin commands need persistent storage, drop --in-memory")
	}
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, false)
}

func newAdminCreateCmd(root *rootOptions) *cobra.Command {
	req := auth.RegisterRequest{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openAdmin(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := a.controller.Register(cmd.Context(), req, auth.AsSystem())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) as %s\n", identity.Email, identity.UID, req.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&req.Role, "role", string(auth.RoleAdmin), "role: admin, manager, sales, accountant or viewer")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAdminStatusCmd(root *rootOptions, use string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <uid>",
		Short: fmt.Sprintf("%s an account", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openAdmin(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			uid := args[0]
			if err := a.local.SetDisabled(cmd.Context(), uid, disabled); err != nil {
				return err
			}
			active := !disabled
			if _, err := a.profiles.Update(cmd.Context(), uid, auth.ProfileUpdate{IsActive: &active}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", use, uid)
			return nil
		},
	}
}

func newAdminListCmd(root *rootOptions) *cobra.Command {
	var role, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List account profiles as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openAdmin(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := auth.ProfileFilter{Search: search}
			if role != "" {
				r, err := auth.ParseRole(role)
				if err != nil {
					return err
				}
				filter.Role = &r
			}
			profiles, err := a.profiles.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(profiles))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().StringVar(&search, "search", "", "match email or display name")
	return cmd
}
