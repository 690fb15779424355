package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/nanocrud/nanocrud"
	"github.com/arthur-debert/nanocrud/nanocrud/auth"
	"github.com/arthur-debert/nanocrud/nanocrud/config"
	"github.com/arthur-debert/nanocrud/nanocrud/routes"
	"github.com/arthur-debert/nanocrud/types"
)

func (cli *CLI) addAddCommand() {
	addCmd := &cobra.Command{
		Use:   "add [field=value...]",
		Short: "Create a record",
		Long: `Create one record from the given field assignments.

An explicit id=N is honoured when N is free.

Examples:
  nanocrud add name=sprocket color=red
  nanocrud --backend sqlite --db items.db add name=bolt quantity=12`,

		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments("add", args)
			if err != nil {
				return err
			}
			return cli.dispatch(cmd, types.OpAdd, fields)
		},
	}

	cli.rootCmd.AddCommand(addCmd)
}

func (cli *CLI) addQueryCommand() {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "List every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.dispatch(cmd, types.OpQuery, types.Fields{})
		},
	}

	cli.rootCmd.AddCommand(queryCmd)
}

func (cli *CLI) addUpdateCommand() {
	updateCmd := &cobra.Command{
		Use:   "update <id> [field=value...]",
		Short: "Update the named fields of a record",
		Long: `Update a record. Fields that are not named keep their values and the id
never changes.

Examples:
  nanocrud update 3 color=blue`,

		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments("update", args[1:])
			if err != nil {
				return err
			}
			fields[types.IDField] = args[0]
			return cli.dispatch(cmd, types.OpUpdate, fields)
		},
	}

	cli.rootCmd.AddCommand(updateCmd)
}

func (cli *CLI) addDeleteCommand() {
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.dispatch(cmd, types.OpDelete, types.Fields{types.IDField: args[0]})
		},
	}

	cli.rootCmd.AddCommand(deleteCmd)
}

func (cli *CLI) addRoutesCommand() {
	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the routes serve would register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, model, err := cli.controllerConfig()
			if err != nil {
				return err
			}
			defer func() { _ = model.Close() }()

			c, err := nanocrud.New(cfg)
			if err != nil {
				return NewConfigError("list routes", err, CommonSuggestions.CheckConfig)
			}
			return render(cmd.OutOrStdout(), cli.settings.Format, routes.Plan(c))
		},
	}

	cli.rootCmd.AddCommand(routesCmd)
}

func (cli *CLI) addConfigCommand() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging flags, NANOCRUD_* environment
variables, the config file and defaults. The jwt secret is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := struct {
				ConfigFile string          `json:"config_file" yaml:"config_file"`
				Settings   config.Settings `json:"settings" yaml:"settings"`
			}{
				ConfigFile: cli.viperInst.ConfigFileUsed(),
				Settings:   cli.settings.Redacted(),
			}
			return render(cmd.OutOrStdout(), cli.settings.Format, out)
		},
	}

	cli.rootCmd.AddCommand(configCmd)
}

func (cli *CLI) addTokenCommand() {
	tokenCmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the login gate",
		Long: `Issue an HS256 bearer token signed with --jwt-secret. Send it as
"Authorization: Bearer <token>" to routes served with the same secret.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.settings.JWTSecret == "" {
				return NewConfigError("issue token", errors.New("jwt-secret is not set"),
					"Pass --jwt-secret or set NANOCRUD_JWT_SECRET")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return NewValidationError("issue token", "ttl", ttl.String(), "Use a positive duration such as 24h")
			}

			a, err := auth.NewJWT([]byte(cli.settings.JWTSecret))
			if err != nil {
				return NewConfigError("issue token", err)
			}
			token, err := a.Issue(args[0], ttl)
			if err != nil {
				return WrapError("issue token", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	cli.rootCmd.AddCommand(tokenCmd)
}
