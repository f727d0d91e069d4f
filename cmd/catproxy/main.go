// catproxy - HTTP proxy for the cat image search API
package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/catproxy/internal/config"
	"github.com/Sternrassler/catproxy/pkg/logging"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootFlags holds flags shared by every command.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "catproxy",
		Short:         "Serve and fetch cat images from the cat API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(newServeCmd(f))
	cmd.AddCommand(newFetchCmd(f))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig loads config and applies the shared flag overrides.
func loadConfig(f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catproxy %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}

func main() {
	err := newRootCmd().Execute()
	_ = logging.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
