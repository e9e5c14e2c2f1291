// Package cmd implements the mcp-client command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version string

// SetVersion sets the version string reported by the CLI.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "mcp-client",
	Short: "Payment-aware HTTP and MCP client",
	Long: `mcp-client fetches HTTP resources and transparently handles 402
Payment Required responses by signing a one-time USDC transfer
authorization and retrying once.

Configuration comes from the environment:
  X402_PRIVATE_KEY   hex-encoded secret key for local signing
  X402_BASE_URL      base URL for relative request paths
  X402_USE_DELEGATE  "true" or "1" to force the delegate signer`,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
