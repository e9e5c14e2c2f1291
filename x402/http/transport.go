package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nullpath-labs/mcp-client/x402"
	"github.com/nullpath-labs/mcp-client/x402/delegate"
	"github.com/nullpath-labs/mcp-client/x402/encoding"
	"github.com/nullpath-labs/mcp-client/x402/wallet"
)

// maxErrorBody bounds how much of a rejection response body is carried in
// error details.
const maxErrorBody = 4096

// Payer performs a delegated paid call. Implemented by delegate.CLI.
type Payer interface {
	Pay(ctx context.Context, url string, opts *delegate.PayOptions) (*delegate.PayResult, error)
}

// X402Transport is a RoundTripper that handles the 402 payment flow:
// one initial request, and on 402 exactly one paid retry (local signing)
// or one delegated call. It never issues more than one extra round trip.
type X402Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Config is the resolved client configuration.
	Config *x402.Config

	// Selector decides the signing backend per attempt.
	Selector *x402.Selector

	// Delegate performs delegated paid calls.
	Delegate Payer

	// OnPaymentAttempt is called when a payment attempt starts.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a payment succeeds.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment fails.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *X402Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		t.Base = http.DefaultTransport
	}

	// Buffer the body once so the request can be replayed on retry and
	// handed to the delegate verbatim.
	bodyBytes, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.Base.RoundTrip(cloneWithBody(req, bodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	backend := t.Selector.Select(req.Context())
	switch backend.Method {
	case x402.BackendDelegate:
		return t.payViaDelegate(req, bodyBytes, resp, backend)
	case x402.BackendLocal:
		return t.payLocally(req, bodyBytes, resp, backend)
	default:
		drainAndClose(resp.Body)
		return nil, x402.NewPaymentError(x402.ErrCodeNotConfigured, "payment required but no payment backend is configured", x402.ErrNotConfigured).
			WithHint("set " + x402.EnvPrivateKey + " to a signing key, or install the delegate signer and set " + x402.EnvUseDelegate + "=true")
	}
}

// payLocally parses the 402 requirements, signs a transfer authorization
// with the local key, and retries once with the X-Payment header.
func (t *X402Transport) payLocally(req *http.Request, bodyBytes []byte, resp *http.Response, backend *x402.BackendConfig) (*http.Response, error) {
	requirements, err := x402.ParsePaymentRequired(resp)
	drainAndClose(resp.Body)
	if err != nil {
		return nil, err
	}

	chain, err := t.Config.Chain()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeNotConfigured, "configured chain is not supported", err)
	}

	identity, err := wallet.NewIdentity(t.Config.PrivateKey, chain)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t.emitAttempt(req, requirements, x402.BackendLocal, identity.Address().Hex(), start)

	signed, err := identity.SignTransfer(requirements)
	if err != nil {
		t.emitFailure(req, x402.BackendLocal, err, time.Since(start))
		return nil, err
	}

	headerValue, err := encoding.EncodePaymentHeader(wallet.HeaderPayload(signed))
	if err != nil {
		err = x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to encode payment header", err)
		t.emitFailure(req, x402.BackendLocal, err, time.Since(start))
		return nil, err
	}

	retry := cloneWithBody(req, bodyBytes)
	retry.Header.Set(x402.HeaderPayment, headerValue)

	retryResp, err := t.Base.RoundTrip(retry)
	if err != nil {
		t.emitFailure(req, x402.BackendLocal, err, time.Since(start))
		return nil, err
	}

	return t.classify(req, retryResp, requirements, x402.BackendLocal, identity.Address().Hex(), start)
}

// payViaDelegate hands the entire original request to the delegate, which
// signs and performs the paid call in one step, then synthesizes a
// response from its result.
func (t *X402Transport) payViaDelegate(req *http.Request, bodyBytes []byte, resp *http.Response, backend *x402.BackendConfig) (*http.Response, error) {
	drainAndClose(resp.Body)

	if t.Delegate == nil {
		return nil, x402.NewPaymentError(x402.ErrCodeDelegateFailed, "delegate backend selected but no delegate is configured", x402.ErrDelegateFailed)
	}

	start := time.Now()
	t.emitAttempt(req, nil, x402.BackendDelegate, backend.Address, start)

	opts := &delegate.PayOptions{
		Method:  req.Method,
		Body:    string(bodyBytes),
		Headers: flattenHeaders(req.Header),
	}

	result, err := t.Delegate.Pay(req.Context(), req.URL.String(), opts)
	if err != nil {
		wrapped := x402.NewPaymentError(x402.ErrCodeDelegateFailed, "delegate payment failed", err)
		t.emitFailure(req, x402.BackendDelegate, wrapped, time.Since(start))
		return nil, wrapped
	}

	if !result.Success {
		var failure *x402.PaymentError
		switch {
		case result.StatusCode == http.StatusPaymentRequired:
			failure = x402.NewPaymentError(x402.ErrCodeRejected, "server rejected the delegated payment", x402.ErrPaymentRejected).
				WithDetails("body", result.ErrorMessage)
		case result.StatusCode != 0:
			failure = x402.NewPaymentError(x402.ErrCodeUpstreamFailed, "request failed after payment was attempted", x402.ErrUpstreamFailed).
				WithDetails("status", result.StatusCode).
				WithDetails("body", result.ErrorMessage)
		default:
			failure = x402.NewPaymentError(x402.ErrCodeDelegateFailed, result.ErrorMessage, x402.ErrDelegateFailed)
		}
		t.emitFailure(req, x402.BackendDelegate, failure, time.Since(start))
		return nil, failure
	}

	statusCode := result.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	header := make(http.Header)
	header.Set(x402.HeaderPaymentMethod, string(x402.BackendDelegate))
	if backend.Address != "" {
		header.Set(x402.HeaderPaymentFrom, backend.Address)
	}

	if t.OnPaymentSuccess != nil {
		event := x402.PaymentEvent{
			Type:      x402.PaymentEventSuccess,
			Timestamp: time.Now(),
			Backend:   x402.BackendDelegate,
			URL:       req.URL.String(),
			Payer:     backend.Address,
			Duration:  time.Since(start),
		}
		if result.Payment != nil {
			event.Recipient = result.Payment.Recipient
			event.Transaction = result.Payment.TransactionHash
		}
		t.OnPaymentSuccess(event)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(result.Body)),
		ContentLength: int64(len(result.Body)),
		Request:       req,
	}, nil
}

// classify turns the retry outcome into the final result: a second 402 is
// a rejected payment (no third call is ever issued), any other
// non-success is an upstream failure noting payment was attempted, and a
// success response is annotated and returned.
func (t *X402Transport) classify(req *http.Request, resp *http.Response, requirements *x402.PaymentRequirements, backend x402.BackendMethod, payer string, start time.Time) (*http.Response, error) {
	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		body := readBodySnippet(resp.Body)
		drainAndClose(resp.Body)
		err := x402.NewPaymentError(x402.ErrCodeRejected, "server rejected the payment", x402.ErrPaymentRejected).
			WithDetails("body", body).
			WithDetails("requirements", requirements)
		t.emitFailure(req, backend, err, time.Since(start))
		return nil, err

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body := readBodySnippet(resp.Body)
		drainAndClose(resp.Body)
		err := x402.NewPaymentError(x402.ErrCodeUpstreamFailed, "request failed after payment was attempted", x402.ErrUpstreamFailed).
			WithDetails("status", resp.StatusCode).
			WithDetails("body", body)
		t.emitFailure(req, backend, err, time.Since(start))
		return nil, err
	}

	resp.Header.Set(x402.HeaderPaymentMethod, string(backend))
	if payer != "" {
		resp.Header.Set(x402.HeaderPaymentFrom, payer)
	}

	if t.OnPaymentSuccess != nil {
		event := x402.PaymentEvent{
			Type:      x402.PaymentEventSuccess,
			Timestamp: time.Now(),
			Backend:   backend,
			URL:       req.URL.String(),
			Payer:     payer,
			Duration:  time.Since(start),
		}
		if requirements != nil {
			event.Amount = requirements.Amount
			event.Asset = requirements.Asset
			event.ChainID = requirements.ChainID
			event.Recipient = requirements.Recipient
		}
		if settlement := ParseSettlement(resp.Header.Get(x402.HeaderPaymentResponse)); settlement != nil {
			event.Transaction = settlement.Transaction
		}
		t.OnPaymentSuccess(event)
	}

	return resp, nil
}

func (t *X402Transport) emitAttempt(req *http.Request, requirements *x402.PaymentRequirements, backend x402.BackendMethod, payer string, start time.Time) {
	if t.OnPaymentAttempt == nil {
		return
	}
	event := x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: start,
		Backend:   backend,
		URL:       req.URL.String(),
		Payer:     payer,
	}
	if requirements != nil {
		event.Amount = requirements.Amount
		event.Asset = requirements.Asset
		event.ChainID = requirements.ChainID
		event.Recipient = requirements.Recipient
	}
	t.OnPaymentAttempt(event)
}

func (t *X402Transport) emitFailure(req *http.Request, backend x402.BackendMethod, err error, duration time.Duration) {
	if t.OnPaymentFailure == nil {
		return
	}
	t.OnPaymentFailure(x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		Backend:   backend,
		URL:       req.URL.String(),
		Error:     err,
		Duration:  duration,
	})
}

// ParseSettlement extracts settlement information from the
// X-Payment-Response header value. Returns nil if the header is empty or
// cannot be parsed.
func ParseSettlement(headerValue string) *x402.SettleResponse {
	if headerValue == "" {
		return nil
	}
	settlement, err := encoding.DecodeSettlement(headerValue)
	if err != nil {
		return nil
	}
	return &settlement
}

// bufferBody reads and closes the request body so each attempt can replay
// it from memory.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// cloneWithBody clones the request with a fresh in-memory body reader.
func cloneWithBody(req *http.Request, bodyBytes []byte) *http.Request {
	clone := req.Clone(req.Context())
	if bodyBytes == nil {
		clone.Body = nil
		return clone
	}
	clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	clone.ContentLength = int64(len(bodyBytes))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(bodyBytes)), nil
	}
	return clone
}

// flattenHeaders reduces a header map to one value per name for the
// delegate argv.
func flattenHeaders(header http.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	flat := make(map[string]string, len(header))
	for name := range header {
		flat[name] = header.Get(name)
	}
	return flat
}

func readBodySnippet(body io.Reader) string {
	snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return strings.TrimSpace(string(snippet))
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	body.Close()
}
