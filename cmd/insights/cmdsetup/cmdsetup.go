// Package cmdsetup resolves the configuration and logger shared by insights
// subcommands from the root persistent flags.
package cmdsetup

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/pkg/config"
	"github.com/papercomputeco/insights/pkg/logger"
)

// Persistent flag names registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
)

// ConfigDir returns the --config-dir override, or "" for dotdir resolution.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// LoadConfig layers flags over INSIGHTS_* env vars, config.toml and defaults,
// binding only the registry flags named in flagKeys, and validates the result.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Logger builds the command logger on stderr, colorized when stderr is a
// terminal, at debug level when --debug is set.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	return logger.New(
		logger.WithDebug(debug),
		logger.WithWriter(os.Stderr),
		logger.WithAutoPretty(os.Stderr),
	)
}
