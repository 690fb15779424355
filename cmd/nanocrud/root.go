package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/nanocrud/nanocrud"
	"github.com/arthur-debert/nanocrud/nanocrud/config"
	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// CLI wires cobra commands to viper settings
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	settings  *config.Settings
	logs      *loggers
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{viperInst: config.New()}
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// Execute runs the root command
func (cli *CLI) Execute() error {
	defer cli.closeLogs()
	return cli.rootCmd.Execute()
}

// SetArgs, SetOut and SetErr are for tests and embedding
func (cli *CLI) SetArgs(args []string) { cli.rootCmd.SetArgs(args) }
func (cli *CLI) SetOut(w io.Writer)    { cli.rootCmd.SetOut(w) }
func (cli *CLI) SetErr(w io.Writer)    { cli.rootCmd.SetErr(w) }

func (cli *CLI) closeLogs() {
	if cli.logs != nil {
		cli.logs.Close()
		cli.logs = nil
	}
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanocrud",
		Short: "nanocrud - generic CRUD routes over a record store",
		Long: `nanocrud exposes a record store through four form-POST routes named
"<operation>-<route>" (add, delete, update, query) and manages the same store
from the command line.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (NANOCRUD_*)
3. Configuration file (custom path or default locations)
4. Built-in defaults

Configuration File Discovery:
  NANOCRUD_CONFIG=/path/to/config.yaml  # Custom config file path
  ./nanocrud.yaml                       # Current directory
  ~/.nanocrud/nanocrud.yaml             # User directory
  /etc/nanocrud/nanocrud.yaml           # System directory

Examples:
  nanocrud --db widgets.json --route widget serve --addr :8080
  nanocrud --db widgets.json add name=sprocket color=red
  nanocrud --db widgets.json --format yaml query
  NANOCRUD_JWT_SECRET=s3cret nanocrud token alice`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = cli.viperInst.BindPFlags(cmd.Flags())

			if err := config.ReadConfigFile(cli.viperInst); err != nil {
				return NewConfigError("load configuration", err, CommonSuggestions.CheckConfig)
			}
			settings, err := config.Load(cli.viperInst)
			if err != nil {
				return NewConfigError("load configuration", err, CommonSuggestions.CheckConfig, CommonSuggestions.RunHelp)
			}
			cli.settings = settings

			logStdout := cli.viperInst.GetBool("log-stdout")
			logs, err := initLogging(settings.LogLevel, logStdout, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cli.logs = logs
			return nil
		},
	}

	cli.addGlobalFlags()
}

func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()
	d := config.Defaults()

	flags.StringP(config.KeyDB, "d", d.DB, "Record store path (json file or sqlite database)")
	flags.String(config.KeyBackend, d.Backend, "Record store backend (json|sqlite)")
	flags.StringP(config.KeyRoute, "r", d.Route, "Route name used in \"<operation>-<route>\"")
	flags.Bool(config.KeyProtect, d.Protect, "Register only the restricted operations")
	flags.StringSlice(config.KeyRestricted, d.Restricted, "Operations registered under --protect")
	flags.String(config.KeyJWTSecret, "", "HMAC secret for bearer tokens; enables the login gate")
	flags.String(config.KeyLogLevel, d.LogLevel, "Log level (debug|info|warn|error)")
	flags.StringP(config.KeyFormat, "f", d.Format, "Output format (json|yaml)")

	for _, key := range []string{
		config.KeyDB, config.KeyBackend, config.KeyRoute, config.KeyProtect,
		config.KeyRestricted, config.KeyJWTSecret, config.KeyLogLevel, config.KeyFormat,
	} {
		_ = cli.viperInst.BindPFlag(key, flags.Lookup(key))
	}
}

func (cli *CLI) addCommands() {
	cli.addServeCommand()

	cli.addAddCommand()
	cli.addQueryCommand()
	cli.addUpdateCommand()
	cli.addDeleteCommand()

	cli.addRoutesCommand()
	cli.addConfigCommand()
	cli.addTokenCommand()
}

// controllerConfig builds the controller settings shared by serve and the
// record commands. The caller owns the returned model.
func (cli *CLI) controllerConfig() (nanocrud.Config, storage.Model, error) {
	s := cli.settings
	restricted, err := s.RestrictedOperations()
	if err != nil {
		return nanocrud.Config{}, nil, NewConfigError("configure controller", err)
	}

	model, err := openModel(s)
	if err != nil {
		return nanocrud.Config{}, nil, NewStoreError("open store", err, CommonSuggestions.CheckDB, CommonSuggestions.CheckPerms)
	}

	return nanocrud.Config{
		Model:      model,
		RouteName:  s.Route,
		Protect:    s.Protect,
		Restricted: restricted,
		Logger:     cli.logs.main,
	}, model, nil
}

// dispatch runs one operation locally and prints the envelope
func (cli *CLI) dispatch(cmd *cobra.Command, op types.Operation, fields types.Fields) error {
	cfg, model, err := cli.controllerConfig()
	if err != nil {
		return err
	}
	defer func() { _ = model.Close() }()

	c, err := nanocrud.New(cfg)
	if err != nil {
		return NewConfigError(op.String(), err, CommonSuggestions.CheckConfig)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := c.Dispatch(ctx, op, fields)
	if err != nil {
		return WrapError(op.String(), err, CommonSuggestions.CheckDB)
	}

	if err := render(cmd.OutOrStdout(), cli.settings.Format, env); err != nil {
		return err
	}
	if !env.OK() {
		return NewRejectedError(op.String(), env.Message(), suggestionsFor(env.Message())...)
	}
	return nil
}

func suggestionsFor(message string) []string {
	switch message {
	case nanocrud.MsgNotExist:
		return []string{CommonSuggestions.CheckID}
	case nanocrud.MsgIDEmpty, nanocrud.MsgIDInvalid, nanocrud.MsgIDNegative:
		return []string{CommonSuggestions.RunHelp}
	default:
		return nil
	}
}

// parseAssignments turns key=value arguments into fields
func parseAssignments(operation string, args []string) (types.Fields, error) {
	fields := make(types.Fields, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewValidationError(operation, "field assignment", arg, CommonSuggestions.CheckFields)
		}
		fields[key] = value
	}
	return fields, nil
}

// stderr is where warnings go when a command has no error writer set
func stderr(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}

func warnf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(stderr(cmd), "Warning: "+format+"\n", args...)
}
