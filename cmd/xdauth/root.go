package main

import (
	"fmt"

	"github.com/aussiebroadwan/xdauth/internal/app"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags. Set flags override the
// environment configuration.
type rootOptions struct {
	database     string
	masterKey    string
	protocolFile string
	userAgent    string
	maxAttempts  int
	logLevel     string

	app *app.Application
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "xdauth",
		Short:         "Log in to the Xidian University portals",
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.DatabaseFile = opts.database
			}
			if flags.Changed("master-key") {
				cfg.MasterKeyPath = opts.masterKey
			}
			if flags.Changed("protocol") {
				cfg.ProtocolFile = opts.protocolFile
			}
			if flags.Changed("user-agent") {
				cfg.UserAgent = opts.userAgent
			}
			if flags.Changed("max-attempts") {
				cfg.MaxAttempts = opts.maxAttempts
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			opts.app = application
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.database, "db", "", "vault database file (env XDAUTH_DATABASE_FILE)")
	pf.StringVar(&opts.masterKey, "master-key", "", "master key file for session snapshots (env XDAUTH_MASTER_KEY_PATH)")
	pf.StringVar(&opts.protocolFile, "protocol", "", "YAML file overriding portal endpoints (env XDAUTH_PROTOCOL_FILE)")
	pf.StringVar(&opts.userAgent, "user-agent", "", "User-Agent sent to the portals (env XDAUTH_USER_AGENT)")
	pf.IntVar(&opts.maxAttempts, "max-attempts", 0, "attempt budget per login (env XDAUTH_MAX_ATTEMPTS)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	root.AddCommand(
		newLoginCmd(opts),
		newStatusCmd(opts),
		newEncryptPasswordCmd(),
		newKeygenCmd(opts),
		newAccountCmd(opts),
		newAppsCmd(opts),
	)
	return root
}
