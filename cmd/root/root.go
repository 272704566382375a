// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"

	"fjacquet/stmt-import/internal/config"
	"fjacquet/stmt-import/internal/container"
	"fjacquet/stmt-import/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	ConfigFile string
	Output     string
	JSON       bool
}

var (
	// SharedFlags are accessible to all commands
	SharedFlags = CommonFlags{}

	// AppContainer is built before every command runs
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "stmt-import",
		Short: "Import bank statements and match transactions to known entities.",
		Long: `stmt-import reads Amex CSV and CAMT.053 statements, matches every
transaction to a registered entity and commits confirmed transactions to the
local store and the Notion mirror.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(nil)
			cfg, err := config.Load(SharedFlags.ConfigFile)
			if err != nil {
				return err
			}
			AppContainer, err = container.NewContainer(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return Shutdown()
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.ConfigFile, "config", "c", "", "Config file (default: config.yaml in $HOME/.stmt-import, .stmt-import or .)")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Write the result as JSON to this file")
	Cmd.PersistentFlags().BoolVar(&SharedFlags.JSON, "json", false, "Print the result as JSON instead of a summary")
}

// Logger returns the container logger tagged with the command name.
func Logger(cmd *cobra.Command) logging.Logger {
	return AppContainer.GetLogger().WithField("command", cmd.Name())
}

// Context returns the command context, or a background context in tests.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Shutdown closes the container if a command left it open. Commands that
// fail skip the post-run hook, so main calls it too.
func Shutdown() error {
	if AppContainer == nil {
		return nil
	}
	err := AppContainer.Close()
	AppContainer = nil
	return err
}
