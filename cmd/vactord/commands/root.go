package commands

import (
	"github.com/spf13/cobra"
)

var (
	// dbPath is the path to the sqlite actor-state database.
	dbPath string

	// logDir is the directory rotated log files are written to (empty
	// disables file logging).
	logDir string

	// name prefixes the runtime's generated identity token.
	name string
)

// rootCmd is the base command for the daemon CLI.
var rootCmd = &cobra.Command{
	Use:   "vactord",
	Short: "vactor single-node virtual-actor runtime daemon",
	Long: `vactord hosts a single node of a distributed virtual-actor runtime:
it activates actors on demand, serializes per-identity message handling, and
bridges a loopback wire transport to user actor code.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "~/.vactord/vactor.db",
		"Path to the sqlite actor-state database",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "~/.vactord/logs",
		"Directory for rotated log files (empty disables file logging)",
	)
	rootCmd.PersistentFlags().StringVar(
		&name, "name", "vactor",
		"Name prefix for the runtime's generated identity token",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evictNowCmd)
}
