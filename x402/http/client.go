package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/nullpath-labs/mcp-client/x402"
	"github.com/nullpath-labs/mcp-client/x402/delegate"
)

// Client is an HTTP client that automatically handles 402 payment flows.
// It wraps a standard http.Client and adds payment handling via
// X402Transport.
type Client struct {
	*http.Client

	config    *x402.Config
	transport *X402Transport
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a payment-aware HTTP client. With no options the
// configuration comes from the process environment and the delegate
// signer is probed via the default command.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := x402.FromEnv(os.Getenv)
	client := &Client{
		Client:    &http.Client{},
		config:    cfg,
		transport: &X402Transport{Base: http.DefaultTransport, Config: cfg},
	}
	client.Transport = client.transport

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	// Wire the default delegate and selector for whatever the options
	// left unset.
	if client.transport.Delegate == nil || client.transport.Selector == nil {
		cli := delegate.New(client.config.DelegateCommand)
		if client.transport.Delegate == nil {
			client.transport.Delegate = cli
		}
		if client.transport.Selector == nil {
			client.transport.Selector = x402.NewSelector(client.config, cli)
		}
	}

	return client, nil
}

// WithConfig sets the client configuration.
func WithConfig(cfg *x402.Config) ClientOption {
	return func(c *Client) error {
		c.config = cfg
		c.transport.Config = cfg
		return nil
	}
}

// WithHTTPClient sets a custom underlying HTTP client. Its transport
// becomes the base of the payment transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.Client = httpClient
		c.transport.Base = base
		c.Client.Transport = c.transport
		return nil
	}
}

// WithDelegate sets the delegate signer used for both paying and status
// probing.
func WithDelegate(cli *delegate.CLI) ClientOption {
	return func(c *Client) error {
		c.transport.Delegate = cli
		c.transport.Selector = x402.NewSelector(c.config, cli)
		return nil
	}
}

// WithSelector sets a custom backend selector.
func WithSelector(selector *x402.Selector) ClientOption {
	return func(c *Client) error {
		c.transport.Selector = selector
		return nil
	}
}

// WithPaymentCallbacks sets the payment event callbacks. Pass nil for any
// callback you don't want to set.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) ClientOption {
	return func(c *Client) error {
		if onAttempt != nil {
			c.transport.OnPaymentAttempt = onAttempt
		}
		if onSuccess != nil {
			c.transport.OnPaymentSuccess = onSuccess
		}
		if onFailure != nil {
			c.transport.OnPaymentFailure = onFailure
		}
		return nil
	}
}

// RequestOptions describe the request issued by FetchWithPayment.
type RequestOptions struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// Body is the request body, if any.
	Body string

	// Headers are merged over the default headers; caller-supplied values
	// win on conflict.
	Headers map[string]string
}

// FetchWithPayment issues the request, transparently handling a 402 with
// exactly one paid retry. A default JSON content type is merged in;
// caller-supplied headers win. Relative URLs are resolved against the
// configured base URL.
//
// Payment failures are returned as *x402.PaymentError with the error
// category, a message, and an actionable hint.
func (c *Client) FetchWithPayment(ctx context.Context, url string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(url), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range opts.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.Do(req)
	if err != nil {
		// http.Client wraps RoundTrip errors in *url.Error; surface the
		// payment error directly.
		var paymentErr *x402.PaymentError
		if errors.As(err, &paymentErr) {
			return nil, paymentErr
		}
		return nil, err
	}
	return resp, nil
}

// Backend resolves the signing backend the client would use right now.
func (c *Client) Backend(ctx context.Context) *x402.BackendConfig {
	return c.transport.Selector.Select(ctx)
}

// PaymentFromResponse returns the payment annotation for a response, or
// nil when the response was served without payment.
func PaymentFromResponse(resp *http.Response) *x402.PaymentAnnotation {
	if resp == nil || resp.Header.Get(x402.HeaderPaymentMethod) == "" {
		return nil
	}
	return &x402.PaymentAnnotation{
		Status: "paid",
		From:   resp.Header.Get(x402.HeaderPaymentFrom),
	}
}

// GetSettlement extracts settlement information from a response. Returns
// nil if no settlement header is present or if parsing fails.
func GetSettlement(resp *http.Response) *x402.SettleResponse {
	return ParseSettlement(resp.Header.Get(x402.HeaderPaymentResponse))
}

func (c *Client) resolveURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	base := c.config.BaseURL
	if base == "" {
		return url
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(url, "/")
}
