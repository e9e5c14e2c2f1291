package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nullpath-labs/mcp-client/x402"
	xhttp "github.com/nullpath-labs/mcp-client/x402/http"
)

var (
	fetchMethod  string
	fetchBody    string
	fetchHeaders []string
	fetchVerbose bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a URL, paying automatically on 402",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchMethod, "request", "X", "", "HTTP method (default GET)")
	fetchCmd.Flags().StringVarP(&fetchBody, "data", "d", "", "request body")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, `request header ("Name: value", repeatable)`)
	fetchCmd.Flags().BoolVarP(&fetchVerbose, "verbose", "v", false, "print payment events to stderr")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	opts := []xhttp.ClientOption{}
	if fetchVerbose {
		opts = append(opts, xhttp.WithPaymentCallbacks(
			func(e x402.PaymentEvent) {
				fmt.Fprintf(os.Stderr, "paying %s to %s via %s\n", x402.FormatUSD(e.Amount), e.Recipient, e.Backend)
			},
			func(e x402.PaymentEvent) {
				fmt.Fprintf(os.Stderr, "paid from %s in %s\n", e.Payer, e.Duration.Round(0))
			},
			func(e x402.PaymentEvent) {
				fmt.Fprintf(os.Stderr, "payment failed: %v\n", e.Error)
			},
		))
	}

	client, err := xhttp.NewClient(opts...)
	if err != nil {
		return err
	}

	headers := make(map[string]string, len(fetchHeaders))
	for _, header := range fetchHeaders {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			return fmt.Errorf("malformed header %q, want \"Name: value\"", header)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	resp, err := client.FetchWithPayment(cmd.Context(), args[0], &xhttp.RequestOptions{
		Method:  fetchMethod,
		Body:    fetchBody,
		Headers: headers,
	})
	if err != nil {
		var paymentErr *x402.PaymentError
		if errors.As(err, &paymentErr) && paymentErr.Hint != "" {
			return fmt.Errorf("%s\nhint: %s", paymentErr.Error(), paymentErr.Hint)
		}
		return err
	}
	defer resp.Body.Close()

	if payment := xhttp.PaymentFromResponse(resp); payment != nil && fetchVerbose {
		fmt.Fprintf(os.Stderr, "response was paid for by %s\n", payment.From)
	}

	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}
