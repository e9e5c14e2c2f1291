package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xhttp "github.com/nullpath-labs/mcp-client/x402/http"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which payment backend would be used",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable output")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := xhttp.NewClient()
	if err != nil {
		return err
	}

	backend := client.Backend(cmd.Context())

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(backend)
	}

	fmt.Printf("backend: %s\n", backend.Method)
	if backend.Address != "" {
		fmt.Printf("address: %s\n", backend.Address)
	}
	if backend.Delegate != nil {
		fmt.Printf("delegate available: %t, authenticated: %t\n",
			backend.Delegate.Available, backend.Delegate.Authenticated)
	}
	return nil
}
