package http

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nullpath-labs/mcp-client/x402"
	"github.com/nullpath-labs/mcp-client/x402/delegate"
	"github.com/nullpath-labs/mcp-client/x402/encoding"
)

// testPrivateKey is the Foundry/Anvil first default account private key.
// This is a well-known test key - NEVER use in production.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// testAddress is the address derived from testPrivateKey.
const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

const testRecipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type fakeProber struct {
	status *x402.DelegateStatus
	calls  int32
}

func (p *fakeProber) Status(ctx context.Context) (*x402.DelegateStatus, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.status == nil {
		return &x402.DelegateStatus{}, nil
	}
	return p.status, nil
}

type fakePayer struct {
	url    string
	opts   *delegate.PayOptions
	result *delegate.PayResult
	err    error
}

func (p *fakePayer) Pay(ctx context.Context, url string, opts *delegate.PayOptions) (*delegate.PayResult, error) {
	p.url = url
	p.opts = opts
	return p.result, p.err
}

func localConfig() *x402.Config {
	return &x402.Config{PrivateKey: testPrivateKey, ChainID: x402.ChainBase}
}

func requirementsHeader(t *testing.T) string {
	t.Helper()
	encoded, err := encoding.EncodeRequirements(x402.PaymentRequiredHeader{
		Recipient:   testRecipient,
		Amount:      "1000",
		Asset:       x402.BaseMainnet.USDCAddress,
		ChainID:     x402.ChainBase,
		ValidBefore: time.Now().Unix() + 300,
	})
	if err != nil {
		t.Fatalf("failed to encode requirements: %v", err)
	}
	return encoded
}

// payServer demands payment on the first request and serves content once
// the retry carries a well-formed X-Payment header.
func payServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)

		payment := r.Header.Get(x402.HeaderPayment)
		if payment == "" {
			w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}

		payload, err := encoding.DecodePaymentHeader(payment)
		if err != nil {
			http.Error(w, "bad payment header", http.StatusBadRequest)
			return
		}
		if payload.From != testAddress || payload.Value != "1000" {
			http.Error(w, "wrong payment", http.StatusBadRequest)
			return
		}

		settlement, _ := encoding.EncodeSettlement(x402.SettleResponse{
			Success:     true,
			Transaction: "0xsettled",
			Payer:       payload.From,
		})
		w.Header().Set(x402.HeaderPaymentResponse, settlement)
		io.WriteString(w, "paid content")
	}))
}

func TestRoundTrip_PassThroughWithoutPayment(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		io.WriteString(w, "free content")
	}))
	defer server.Close()

	prober := &fakeProber{}
	transport := &X402Transport{
		Config:   localConfig(),
		Selector: x402.NewSelector(localConfig(), prober),
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "free content" {
		t.Errorf("body = %q; want \"free content\"", body)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("requests = %d; want 1", n)
	}
	if n := atomic.LoadInt32(&prober.calls); n != 0 {
		t.Errorf("probe calls = %d; want 0 (no payment, no probe)", n)
	}
	if resp.Header.Get(x402.HeaderPaymentMethod) != "" {
		t.Error("unpaid response must not carry a payment method header")
	}
}

func TestRoundTrip_LocalPayment(t *testing.T) {
	var requests int32
	server := payServer(t, &requests)
	defer server.Close()

	var attempts, successes []x402.PaymentEvent
	transport := &X402Transport{
		Config:           localConfig(),
		Selector:         x402.NewSelector(localConfig(), &fakeProber{}),
		OnPaymentAttempt: func(e x402.PaymentEvent) { attempts = append(attempts, e) },
		OnPaymentSuccess: func(e x402.PaymentEvent) { successes = append(successes, e) },
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "paid content" {
		t.Errorf("body = %q; want \"paid content\"", body)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("requests = %d; want 2 (initial plus one paid retry)", n)
	}
	if got := resp.Header.Get(x402.HeaderPaymentMethod); got != "local" {
		t.Errorf("%s = %q; want \"local\"", x402.HeaderPaymentMethod, got)
	}
	if got := resp.Header.Get(x402.HeaderPaymentFrom); got != testAddress {
		t.Errorf("%s = %q; want %s", x402.HeaderPaymentFrom, got, testAddress)
	}

	if len(attempts) != 1 || len(successes) != 1 {
		t.Fatalf("events: %d attempts, %d successes; want 1 and 1", len(attempts), len(successes))
	}
	if attempts[0].Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("attempt amount = %s; want 1000", attempts[0].Amount)
	}
	if successes[0].Transaction != "0xsettled" {
		t.Errorf("success transaction = %q; want settlement echo", successes[0].Transaction)
	}
}

func TestRoundTrip_RetryReplaysBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if r.Header.Get(x402.HeaderPayment) == "" {
			w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	transport := &X402Transport{
		Config:   localConfig(),
		Selector: x402.NewSelector(localConfig(), &fakeProber{}),
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"q":"data"}`))
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("requests = %d; want 2", len(bodies))
	}
	for i, body := range bodies {
		if body != `{"q":"data"}` {
			t.Errorf("request %d body = %q; want original body", i, body)
		}
	}
}

func TestRoundTrip_SecondRejectionStops(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, "payment refused")
	}))
	defer server.Close()

	var failures []x402.PaymentEvent
	transport := &X402Transport{
		Config:           localConfig(),
		Selector:         x402.NewSelector(localConfig(), &fakeProber{}),
		OnPaymentFailure: func(e x402.PaymentEvent) { failures = append(failures, e) },
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := transport.RoundTrip(req)

	var paymentErr *x402.PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	if paymentErr.Code != x402.ErrCodeRejected {
		t.Errorf("Code = %s; want %s", paymentErr.Code, x402.ErrCodeRejected)
	}
	if !errors.Is(err, x402.ErrPaymentRejected) {
		t.Error("expected errors.Is(err, x402.ErrPaymentRejected)")
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("requests = %d; want 2 (never a third attempt)", n)
	}
	if len(failures) != 1 {
		t.Errorf("failure events = %d; want 1", len(failures))
	}
}

func TestRoundTrip_UpstreamFailureAfterPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(x402.HeaderPayment) == "" {
			w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := &X402Transport{
		Config:   localConfig(),
		Selector: x402.NewSelector(localConfig(), &fakeProber{}),
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := transport.RoundTrip(req)

	var paymentErr *x402.PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	if paymentErr.Code != x402.ErrCodeUpstreamFailed {
		t.Errorf("Code = %s; want %s", paymentErr.Code, x402.ErrCodeUpstreamFailed)
	}
	if paymentErr.Details["status"] != http.StatusInternalServerError {
		t.Errorf("status detail = %v; want 500", paymentErr.Details["status"])
	}
}

func TestRoundTrip_NoBackendConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	cfg := &x402.Config{}
	transport := &X402Transport{
		Config:   cfg,
		Selector: x402.NewSelector(cfg, &fakeProber{}),
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := transport.RoundTrip(req)

	var paymentErr *x402.PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	if paymentErr.Code != x402.ErrCodeNotConfigured {
		t.Errorf("Code = %s; want %s", paymentErr.Code, x402.ErrCodeNotConfigured)
	}
	if paymentErr.Hint == "" {
		t.Error("expected an actionable hint")
	}
}

func TestRoundTrip_DelegatePayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	cfg := &x402.Config{ForceDelegate: true}
	payer := &fakePayer{result: &delegate.PayResult{
		Success:    true,
		Body:       "delegated content",
		StatusCode: 200,
		Payment:    &delegate.PaymentInfo{TransactionHash: "0xdelegated"},
	}}
	prober := &fakeProber{status: &x402.DelegateStatus{
		Available: true, Authenticated: true, Address: "0xDelegate",
	}}

	var successes []x402.PaymentEvent
	transport := &X402Transport{
		Config:           cfg,
		Selector:         x402.NewSelector(cfg, prober),
		Delegate:         payer,
		OnPaymentSuccess: func(e x402.PaymentEvent) { successes = append(successes, e) },
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/paid", strings.NewReader(`{"k":"v"}`))
	req.Header.Set("Accept", "application/json")
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d; want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "delegated content" {
		t.Errorf("body = %q; want delegate body", body)
	}
	if got := resp.Header.Get(x402.HeaderPaymentMethod); got != "delegate" {
		t.Errorf("%s = %q; want \"delegate\"", x402.HeaderPaymentMethod, got)
	}
	if got := resp.Header.Get(x402.HeaderPaymentFrom); got != "0xDelegate" {
		t.Errorf("%s = %q; want 0xDelegate", x402.HeaderPaymentFrom, got)
	}

	// The delegate receives the original request verbatim.
	if payer.url != server.URL+"/paid" {
		t.Errorf("delegate url = %q; want original url", payer.url)
	}
	if payer.opts.Method != http.MethodPost || payer.opts.Body != `{"k":"v"}` {
		t.Errorf("delegate opts = %+v; want original method and body", payer.opts)
	}
	if payer.opts.Headers["Accept"] != "application/json" {
		t.Errorf("delegate headers = %v; want original headers", payer.opts.Headers)
	}

	if len(successes) != 1 || successes[0].Transaction != "0xdelegated" {
		t.Errorf("success events = %+v; want one with the delegate transaction", successes)
	}
}

func TestRoundTrip_DelegateFailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		result   *delegate.PayResult
		err      error
		wantCode x402.ErrorCode
	}{
		{
			name:     "second 402 is a rejection",
			result:   &delegate.PayResult{Success: false, StatusCode: 402, ErrorMessage: "refused"},
			wantCode: x402.ErrCodeRejected,
		},
		{
			name:     "other upstream status is an upstream failure",
			result:   &delegate.PayResult{Success: false, StatusCode: 503, ErrorMessage: "unavailable"},
			wantCode: x402.ErrCodeUpstreamFailed,
		},
		{
			name:     "no status is a delegate failure",
			result:   &delegate.PayResult{Success: false, ErrorMessage: "wallet locked"},
			wantCode: x402.ErrCodeDelegateFailed,
		},
		{
			name:     "invocation error is a delegate failure",
			err:      errors.New("executable not found"),
			wantCode: x402.ErrCodeDelegateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(x402.HeaderPaymentRequired, requirementsHeader(t))
				w.WriteHeader(http.StatusPaymentRequired)
			}))
			defer server.Close()

			cfg := &x402.Config{ForceDelegate: true}
			transport := &X402Transport{
				Config: cfg,
				Selector: x402.NewSelector(cfg, &fakeProber{status: &x402.DelegateStatus{
					Available: true, Authenticated: true,
				}}),
				Delegate: &fakePayer{result: tt.result, err: tt.err},
			}

			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			_, err := transport.RoundTrip(req)

			var paymentErr *x402.PaymentError
			if !errors.As(err, &paymentErr) {
				t.Fatalf("expected PaymentError, got %v", err)
			}
			if paymentErr.Code != tt.wantCode {
				t.Errorf("Code = %s; want %s", paymentErr.Code, tt.wantCode)
			}
		})
	}
}

func TestRoundTrip_MalformedRequirements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(x402.HeaderPaymentRequired, "not-base64!!!")
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	transport := &X402Transport{
		Config:   localConfig(),
		Selector: x402.NewSelector(localConfig(), &fakeProber{}),
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := transport.RoundTrip(req)

	var paymentErr *x402.PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	if paymentErr.Code != x402.ErrCodeMalformedRequirements {
		t.Errorf("Code = %s; want %s", paymentErr.Code, x402.ErrCodeMalformedRequirements)
	}
}

func TestParseSettlement(t *testing.T) {
	encoded, err := encoding.EncodeSettlement(x402.SettleResponse{Success: true, Transaction: "0xabc"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if got := ParseSettlement(encoded); got == nil || got.Transaction != "0xabc" {
		t.Errorf("ParseSettlement = %+v; want transaction 0xabc", got)
	}
	if got := ParseSettlement(""); got != nil {
		t.Error("empty header should yield nil")
	}
	if got := ParseSettlement("garbage"); got != nil {
		t.Error("unparseable header should yield nil")
	}
}
