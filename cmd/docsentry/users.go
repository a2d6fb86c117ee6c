// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docsentry-dev/docsentry/internal/access"
	"github.com/docsentry-dev/docsentry/internal/auth"
	dserr "github.com/docsentry-dev/docsentry/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
		Long:  "Create, list, update, and delete accounts in the local user database. A running server sees changes immediately; both operate on the same database file.",
	}

	cmd.AddCommand(
		newUsersListCmd(),
		newUsersAddCmd(),
		newUsersSetRoleCmd(),
		newUsersRemoveCmd(),
		newUsersSeedCmd(),
	)

	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := openUserService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			users, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				_, _ = fmt.Fprintln(out, "No accounts. Create one with 'docsentry users add'.")
				return nil
			}
			for _, u := range users {
				_, _ = fmt.Fprintf(out, "%-24s %s\n", u.Username, u.Role)
			}
			return nil
		},
	}
}

func newUsersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersAdd,
	}

	cmd.Flags().String("role", "", "role for the new account (required)")
	cmd.Flags().String("password", "", "password (generated and printed when omitted)")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	username := args[0]
	role, _ := cmd.Flags().GetString("role")
	password, _ := cmd.Flags().GetString("password")

	svc, policy, err := openUserService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if !policy.IsKnownRole(role) {
		return dserr.Errorf(dserr.CodeCLIInputInvalid,
			"unknown role %q (known roles: %v)", role, policy.KnownRoles())
	}

	generated := password == ""
	if generated {
		password, err = randomPassword()
		if err != nil {
			return err
		}
	}

	if err := svc.Create(cmd.Context(), username, password, role); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created %s (%s)\n", username, role)
	if generated {
		_, _ = fmt.Fprintf(out, "Generated password: %s\n", password)
	}
	return nil
}

func newUsersSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <username> <role>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, policy, err := openUserService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if !policy.IsKnownRole(args[1]) {
				return dserr.Errorf(dserr.CodeCLIInputInvalid,
					"unknown role %q (known roles: %v)", args[1], policy.KnownRoles())
			}
			if err := svc.SetRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newUsersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openUserService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newUsersSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <users.yaml>",
		Short: "Create accounts from a YAML file",
		Long: `Create accounts listed in a YAML file. Each entry needs username, password,
and role. Existing usernames are skipped, so re-running after edits only
creates the new entries.`,
		Args: cobra.ExactArgs(1),
		RunE: runUsersSeed,
	}
}

func runUsersSeed(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "reading seed file: %w", err)
	}

	var seeds []auth.SeedUser
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "parsing seed file %s: %w", args[0], err)
	}

	svc, policy, err := openUserService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	for _, s := range seeds {
		if !policy.IsKnownRole(s.Role) {
			return dserr.Errorf(dserr.CodeCLIInputInvalid,
				"seed entry %q has unknown role %q (known roles: %v)", s.Username, s.Role, policy.KnownRoles())
		}
	}

	created, err := svc.Seed(cmd.Context(), seeds)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d accounts (%d already existed)\n",
		created, len(seeds), len(seeds)-created)
	return nil
}

// openUserService opens the local user database and the configured access
// policy. The caller must Close the returned service.
func openUserService() (*auth.Service, *access.Policy, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, dserr.Errorf(dserr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	svc, err := auth.Open(filepath.Join(dataDir, "users.db"))
	if err != nil {
		return nil, nil, err
	}
	return svc, access.NewPolicy(cfg.Access), nil
}

// randomPassword returns a 16-byte hex password from crypto/rand.
func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", dserr.Errorf(dserr.CodeCLISetupFailure, "generating password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
