// Package mcp exposes the payment-aware fetch as a Model Context
// Protocol tool, so agent frameworks can call paid HTTP endpoints
// without handling 402 responses themselves.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nullpath-labs/mcp-client/x402"
	xhttp "github.com/nullpath-labs/mcp-client/x402/http"
)

// fetchResult is the JSON object returned to the tool caller on success.
type fetchResult struct {
	// Status is the upstream status code.
	Status int `json:"status"`

	// Body is the upstream response body.
	Body string `json:"body"`

	// Payment is attached when the request was paid for.
	Payment *x402.PaymentAnnotation `json:"_payment,omitempty"`
}

// fetchError is the JSON object returned to the tool caller on failure.
// Secret material never appears here.
type fetchError struct {
	// Error is the payment error category.
	Error string `json:"error"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Hint is an actionable suggestion, when available.
	Hint string `json:"hint,omitempty"`
}

// NewServer creates an MCP server exposing the paid_fetch tool backed by
// the given client.
func NewServer(client *xhttp.Client, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mcp-client",
		version,
		server.WithToolCapabilities(false),
	)

	fetchTool := mcp.NewTool("paid_fetch",
		mcp.WithDescription("Fetch a URL, automatically paying for it if the server responds with 402 Payment Required"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL to fetch"),
		),
		mcp.WithString("method",
			mcp.Description("HTTP method (default GET)"),
		),
		mcp.WithString("body",
			mcp.Description("Request body"),
		),
		mcp.WithObject("headers",
			mcp.Description("Request headers as a JSON object of string values"),
		),
	)
	s.AddTool(fetchTool, handlePaidFetch(client))

	backendTool := mcp.NewTool("payment_status",
		mcp.WithDescription("Report which payment backend (delegate, local, none) would be used for paid requests"),
	)
	s.AddTool(backendTool, handlePaymentStatus(client))

	return s
}

// ServeStdio runs the server over stdio until the context is cancelled.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func handlePaidFetch(client *xhttp.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments type"), nil
		}

		url, ok := args["url"].(string)
		if !ok || url == "" {
			return mcp.NewToolResultError("missing or invalid 'url' argument"), nil
		}

		opts := &xhttp.RequestOptions{}
		if method, ok := args["method"].(string); ok {
			opts.Method = method
		}
		if body, ok := args["body"].(string); ok {
			opts.Body = body
		}
		if rawHeaders, ok := args["headers"].(map[string]interface{}); ok {
			opts.Headers = make(map[string]string, len(rawHeaders))
			for name, value := range rawHeaders {
				if s, ok := value.(string); ok {
					opts.Headers[name] = s
				}
			}
		}

		resp, err := client.FetchWithPayment(ctx, url, opts)
		if err != nil {
			return paymentErrorResult(err), nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response body: %v", err)), nil
		}

		result := fetchResult{
			Status:  resp.StatusCode,
			Body:    string(body),
			Payment: xhttp.PaymentFromResponse(resp),
		}
		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func handlePaymentStatus(client *xhttp.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		backend := client.Backend(ctx)
		data, err := json.Marshal(backend)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal backend: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// paymentErrorResult converts a payment failure into the structured
// {error, message, hint} object surfaced to tool callers.
func paymentErrorResult(err error) *mcp.CallToolResult {
	fe := fetchError{Error: "REQUEST_FAILED", Message: err.Error()}
	var paymentErr *x402.PaymentError
	if errors.As(err, &paymentErr) {
		fe.Error = string(paymentErr.Code)
		fe.Message = paymentErr.Message
		fe.Hint = paymentErr.Hint
	}
	data, marshalErr := json.Marshal(fe)
	if marshalErr != nil {
		return mcp.NewToolResultError(fe.Message)
	}
	return mcp.NewToolResultError(string(data))
}
