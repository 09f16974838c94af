// Package commands provides the CLI commands for the Cerise runtime.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmoranv/cerise/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs  bool
	logLevel   string
	dataDirFlg string
)

var rootCmd = &cobra.Command{
	Use:   "cerise",
	Short: "Cerise - an event-driven AI agent runtime",
	Long: `Cerise runs a persistent AI agent: dialogue, layered memory, emotion
tracking, skills, proactive messaging, and plugin-extensible abilities,
wired together over a shared event bus.

Run 'cerise serve' to start the runtime and its admin HTTP surface.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.DefaultConfig()
		logCfg.Level = logging.ParseLevel(logLevel)
		logCfg.Pretty = printLogs
		logging.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlg, "data-dir", "", "Data directory (defaults to CERISE_DATA_DIR or the XDG data home)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("cerise %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(mcpServerCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// dataDir resolves the effective data directory: the --data-dir flag if
// set, otherwise config's own CERISE_DATA_DIR/XDG default.
func dataDir() string {
	return dataDirFlg
}
