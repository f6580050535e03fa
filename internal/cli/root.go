package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	envFile  string
	logLevel string
	readOnly bool
)

// rootCmd runs the interactive session when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "ftrdraft",
	Short: "FTR Draft Generator - AWS FTR drafting assistant",
	Long: `ftrdraft connects an LLM agent to Atlassian Confluence and Jira through
the Atlassian MCP server to help draft AWS Foundational Technical Review
(FTR) responses grounded in internal documentation.

Run without a subcommand to start an interactive session.`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment (empty to disable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "hide and refuse tools that create or modify content")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
