// Package delegate invokes the external delegate signer program. The
// delegate holds signing authority and performs both the authorization
// and the paid network call in one step.
//
// Every invocation passes arguments as a literal argv list via
// exec.CommandContext; nothing is ever interpolated into a shell command
// string, so URLs or bodies containing shell metacharacters are inert.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/nullpath-labs/mcp-client/x402"
)

// Timeouts for delegate invocations. Paying involves signing plus a
// network call and gets a much longer bound than the read-only status
// probe; either way a hung delegate cannot wedge the caller.
const (
	DefaultPayTimeout    = 60 * time.Second
	DefaultStatusTimeout = 10 * time.Second
)

// maxOutputExcerpt bounds how much unparseable delegate output is carried
// in error messages.
const maxOutputExcerpt = 200

// Runner executes an external program with an argument vector and returns
// its standard output and standard error. The production implementation
// shells out via exec.CommandContext; tests capture the argv instead.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Error is reported when the delegate program's output cannot be
// interpreted. Output carries a truncated excerpt of the offending text.
type Error struct {
	// Output is a truncated excerpt of the unparseable output.
	Output string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "delegate signer failed"
	if e.Output != "" {
		msg += ": unparseable output: " + e.Output
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports this as a delegate failure for errors.Is checks.
func (e *Error) Is(target error) bool {
	return target == x402.ErrDelegateFailed
}

// PayOptions describes the original request handed to the delegate.
type PayOptions struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// Body is the request body, if any.
	Body string

	// Headers are the request headers, one value per name.
	Headers map[string]string
}

// PaymentInfo describes the payment the delegate made.
type PaymentInfo struct {
	// Amount is the paid amount in atomic units.
	Amount string

	// Recipient is the payment recipient address.
	Recipient string

	// TransactionHash is the settlement transaction reference, if any.
	TransactionHash string
}

// PayResult is the outcome of a delegated paid call.
type PayResult struct {
	// Success reports whether the delegate completed the paid call.
	Success bool

	// Body is the upstream response body on success.
	Body string

	// StatusCode is the upstream status code, when reported.
	StatusCode int

	// ErrorMessage describes the failure when Success is false.
	ErrorMessage string

	// Payment describes the payment made, when reported.
	Payment *PaymentInfo
}

// payResponseWire mirrors the delegate's JSON output. Two generations of
// field names exist for the body and the transaction reference; both are
// accepted.
type payResponseWire struct {
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
	Data       json.RawMessage `json:"data"`
	Payment    *struct {
		Amount          string `json:"amount"`
		Recipient       string `json:"recipient"`
		TransactionHash string `json:"transactionHash"`
		TxHash          string `json:"txHash"`
	} `json:"payment"`
}

// CLI invokes the delegate signer program.
type CLI struct {
	command       []string
	runner        Runner
	payTimeout    time.Duration
	statusTimeout time.Duration
}

// Option configures a CLI.
type Option func(*CLI)

// WithRunner substitutes the process runner, for tests.
func WithRunner(r Runner) Option {
	return func(c *CLI) { c.runner = r }
}

// WithPayTimeout overrides the pay invocation time bound.
func WithPayTimeout(d time.Duration) Option {
	return func(c *CLI) { c.payTimeout = d }
}

// WithStatusTimeout overrides the status probe time bound.
func WithStatusTimeout(d time.Duration) Option {
	return func(c *CLI) { c.statusTimeout = d }
}

// New creates a delegate CLI adapter. command is the argv prefix of the
// delegate program, e.g. {"x402-wallet"}.
func New(command []string, opts ...Option) *CLI {
	if len(command) == 0 {
		command = x402.DefaultDelegateCommand
	}
	c := &CLI{
		command:       command,
		runner:        execRunner{},
		payTimeout:    DefaultPayTimeout,
		statusTimeout: DefaultStatusTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status asks the delegate program for its status snapshot. Implements
// x402.StatusProber.
func (c *CLI) Status(ctx context.Context) (*x402.DelegateStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	args := append(c.command[1:], "status", "--json")
	stdout, _, err := c.runner.Run(ctx, c.command[0], args...)
	if err != nil {
		return nil, &Error{Err: err}
	}

	var status x402.DelegateStatus
	if err := json.Unmarshal(stdout, &status); err != nil {
		return nil, &Error{Output: excerpt(stdout), Err: err}
	}
	return &status, nil
}

// Pay hands the original request to the delegate, which signs the
// authorization and performs the paid call.
//
// The program is invoked as:
//
//	<command> pay <url> [-X METHOD] [-d BODY] [-H "k: v"]... --json
//
// with every token passed as a literal argument.
func (c *CLI) Pay(ctx context.Context, url string, opts *PayOptions) (*PayResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.payTimeout)
	defer cancel()

	if opts == nil {
		opts = &PayOptions{}
	}

	args := append(c.command[1:], "pay", url)
	if opts.Method != "" {
		args = append(args, "-X", opts.Method)
	}
	if opts.Body != "" {
		args = append(args, "-d", opts.Body)
	}
	for _, name := range sortedHeaderNames(opts.Headers) {
		args = append(args, "-H", name+": "+opts.Headers[name])
	}
	args = append(args, "--json")

	stdout, stderr, err := c.runner.Run(ctx, c.command[0], args...)
	if err != nil {
		return recoverInvocationFailure(stdout, stderr, err)
	}

	if len(bytes.TrimSpace(stdout)) == 0 {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = "empty response from delegate"
		}
		return &PayResult{Success: false, ErrorMessage: msg}, nil
	}

	var wire payResponseWire
	if err := json.Unmarshal(stdout, &wire); err != nil {
		return nil, &Error{Output: excerpt(stdout), Err: err}
	}

	if wire.Error != "" {
		return &PayResult{
			Success:      false,
			ErrorMessage: wire.Error,
			StatusCode:   wire.StatusCode,
		}, nil
	}

	result := &PayResult{
		Success:    true,
		Body:       rawToString(firstRaw(wire.Body, wire.Data)),
		StatusCode: wire.StatusCode,
	}
	if wire.Payment != nil {
		txHash := wire.Payment.TransactionHash
		if txHash == "" {
			txHash = wire.Payment.TxHash
		}
		result.Payment = &PaymentInfo{
			Amount:          wire.Payment.Amount,
			Recipient:       wire.Payment.Recipient,
			TransactionHash: txHash,
		}
	}
	return result, nil
}

// recoverInvocationFailure gives a failed delegate invocation a chance to
// self-describe: structured error on stderr first, then raw stderr text,
// and only then a wrapped invocation error.
func recoverInvocationFailure(stdout, stderr []byte, invokeErr error) (*PayResult, error) {
	var wire payResponseWire
	if jsonErr := json.Unmarshal(stderr, &wire); jsonErr == nil && wire.Error != "" {
		return &PayResult{
			Success:      false,
			ErrorMessage: wire.Error,
			StatusCode:   wire.StatusCode,
		}, nil
	}

	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return &PayResult{Success: false, ErrorMessage: msg}, nil
	}

	return nil, &Error{Output: excerpt(stdout), Err: invokeErr}
}

func sortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstRaw(raws ...json.RawMessage) json.RawMessage {
	for _, raw := range raws {
		if len(raw) > 0 {
			return raw
		}
	}
	return nil
}

// rawToString renders a raw JSON value as the response body: quoted
// strings are unquoted, anything else is kept as its JSON text.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func excerpt(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxOutputExcerpt {
		return text[:maxOutputExcerpt] + "..."
	}
	return text
}
