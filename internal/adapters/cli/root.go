package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetsim",
		Short: "Fleetsim CLI - Drive the passenger demand backend",
		Long: `Fleetsim CLI provides commands to seed, inspect and dry-run the
passenger demand engine behind the fleet simulator.

Examples:
  fleetsim seed --day monday --route all
  fleetsim seed --day saturday --route R12 --depot-spawning
  fleetsim passengers --route route-1 --status WAITING --limit 50
  fleetsim spawn --route R12 --time 08:00:00 --day monday --window 60
  fleetsim config show`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: search ., ./configs, /etc/fleetsim)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	rootCmd.AddCommand(NewSeedCommand())
	rootCmd.AddCommand(NewPassengersCommand())
	rootCmd.AddCommand(NewSpawnCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
