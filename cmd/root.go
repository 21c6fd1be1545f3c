package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailpipe application
var rootCmd = &cobra.Command{
	Use:   "mailpipe",
	Short: "Gmail MCP server that delivers mail as Markdown files",
	Long: `mailpipe is a Model Context Protocol (MCP) server for Gmail.

It searches, reads, labels and composes mail on behalf of an AI assistant.
Search results, messages, threads and attachments are rendered and written
to a private scratch directory, and tools return the file paths together
with compact metadata instead of the full content.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailpipe version %s\n" .Version}}`)

	// Without a subcommand the server starts, which is what MCP clients expect.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
