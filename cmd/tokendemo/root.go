package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alphabill-org/alphabill-token-auth/config"
)

type rootFlags struct {
	configFile string
	logLevel   string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "tokendemo",
		Short:         "Token contract with delegated authorization",
		Long:          "Runs the scenario of a token contract approving state changes of other contracts paid in its token.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file, default config with generated keys is used when empty")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides config")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "bolt database file of the ledger, overrides config")

	cmd.AddCommand(newRunCmd(flags), newGenConfigCmd())
	return cmd
}

func (f *rootFlags) loadConfig() (*config.Demo, error) {
	var cfg *config.Demo
	var err error
	if f.configFile == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(f.configFile)
	}
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func newGenConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig <file>",
		Short: "Writes default config with newly generated keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			if err := cfg.Save(args[0]); err != nil {
				return err
			}
			cmd.Printf("config written to %s\n", args[0])
			return nil
		},
	}
}
