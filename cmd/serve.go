package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nullpath-labs/mcp-client/mcp"
	xhttp "github.com/nullpath-labs/mcp-client/x402/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an MCP server exposing the paid_fetch tool over stdio",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	client, err := xhttp.NewClient()
	if err != nil {
		return err
	}
	return mcp.ServeStdio(mcp.NewServer(client, version))
}
