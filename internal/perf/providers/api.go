package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/retry"
	"nathanbeddoewebdev/dialctl/internal/services/auth"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultAPIURL = "http://localhost:8000"
	apiTimeout    = 30 * time.Second
	maxErrorBody  = 4 << 10
)

// Compile-time check that APIClient satisfies domain.Source.
var _ domain.Source = (*APIClient)(nil)

// APIClient implements domain.Source against the performance REST API.
// GET requests are retried on transient failures. Mutations are sent once.
type APIClient struct {
	token   string
	baseURL string
	client  *http.Client
	retry   retry.Config
	log     zerolog.Logger
}

// APIOption configures an APIClient.
type APIOption func(*APIClient)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) { a.client = c }
}

// WithRetry overrides the retry policy for GET requests.
func WithRetry(cfg retry.Config) APIOption {
	return func(a *APIClient) { a.retry = cfg }
}

// WithAPILogger sets the client's logger.
func WithAPILogger(l zerolog.Logger) APIOption {
	return func(a *APIClient) { a.log = l }
}

// NewAPIClient creates a client for baseURL. An empty token sends no
// Authorization header.
func NewAPIClient(baseURL, token string, opts ...APIOption) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	a := &APIClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: apiTimeout},
		retry:   retry.DefaultConfig(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterAPI registers the REST client factory. The bearer token is
// optional; a missing keychain entry yields an unauthenticated client.
func RegisterAPI() {
	Register("api", func(s Settings) (domain.Source, error) {
		var token string
		if s.Store != nil {
			t, err := s.Store.GetToken(auth.APIKey)
			switch {
			case err == nil:
				token = t
			case !errors.Is(err, auth.ErrTokenNotFound):
				return nil, fmt.Errorf("api auth: %w", err)
			}
		}
		return NewAPIClient(s.BaseURL, token, WithAPILogger(s.Logger)), nil
	})
}

// VerifyToken makes one authenticated status call with token and returns
// the error, if any. A rejected token unwraps to domain.ErrUnauthorized.
func VerifyToken(ctx context.Context, baseURL, token string) error {
	c := NewAPIClient(baseURL, token, WithRetry(retry.Config{MaxAttempts: 1}))
	_, err := c.LoadTestStatus(ctx)
	return err
}

// GetDisplayName returns the human-readable source name.
func (a *APIClient) GetDisplayName() string {
	return "Performance API (" + a.baseURL + ")"
}

// AuthHeader returns the header to send on the metrics stream upgrade.
func (a *APIClient) AuthHeader() http.Header {
	h := http.Header{}
	if a.token != "" {
		h.Set("Authorization", "Bearer "+a.token)
	}
	return h
}

// doRaw sends one request and returns the response body. Non-2xx answers
// become *domain.ServerError and network failures *domain.TransportError.
func (a *APIClient) doRaw(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	a.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ServerError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// doJSON is doRaw plus decoding of the body into out.
func (a *APIClient) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	data, err := a.doRaw(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	return decode(op, data, out)
}

// get performs an idempotent GET with retries.
func (a *APIClient) get(ctx context.Context, op, path string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, a.retry, retry.IsRetryable, func() error {
		var err error
		data, err = a.doRaw(ctx, op, http.MethodGet, path, nil)
		return err
	})
	return data, err
}

func decode(op string, data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body.
// FastAPI-style {"detail": ...}, {"error": ...} and {"message": ...} are
// recognized; anything else is returned trimmed.
func errorMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if gjson.ValidBytes(body) {
		for _, key := range []string{"detail", "error", "message"} {
			r := gjson.GetBytes(body, key)
			if !r.Exists() {
				continue
			}
			if r.IsArray() {
				var msgs []string
				for _, item := range r.Array() {
					if m := item.Get("msg"); m.Exists() {
						msgs = append(msgs, m.String())
					} else {
						msgs = append(msgs, item.String())
					}
				}
				return strings.Join(msgs, "; ")
			}
			if r.IsObject() {
				if m := r.Get("message"); m.Exists() {
					return m.String()
				}
				return r.Raw
			}
			return r.String()
		}
	}
	return strings.TrimSpace(string(body))
}

// --- Load test ---

func (a *APIClient) StartLoadTest(ctx context.Context, cfg domain.LoadTestConfig) error {
	_, err := a.doRaw(ctx, "start load test", http.MethodPost, "/performance/load-test/start", cfg)
	return err
}

func (a *APIClient) StopLoadTest(ctx context.Context) error {
	_, err := a.doRaw(ctx, "stop load test", http.MethodPost, "/performance/load-test/stop", nil)
	return err
}

func (a *APIClient) LoadTestStatus(ctx context.Context) (*domain.LoadTestStatus, error) {
	const op = "get load test status"
	data, err := a.get(ctx, op, "/performance/load-test/status")
	if err != nil {
		return nil, err
	}
	var status domain.LoadTestStatus
	if err := decode(op, data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LoadTestResults accepts both a bare result object and one wrapped in
// {"results": ...}.
func (a *APIClient) LoadTestResults(ctx context.Context) (*domain.LoadTestResult, error) {
	const op = "get load test results"
	data, err := a.get(ctx, op, "/performance/load-test/results?format="+domain.FormatJSON)
	if err != nil {
		return nil, err
	}
	if r := gjson.GetBytes(data, "results"); r.IsObject() {
		data = []byte(r.Raw)
	}
	var res domain.LoadTestResult
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *APIClient) ExportLoadTestResults(ctx context.Context, format string) ([]byte, error) {
	return a.get(ctx, "export load test results", "/performance/load-test/results?format="+url.QueryEscape(format))
}

// --- Quotas ---

func (a *APIClient) CliLimits(ctx context.Context) (map[string]int, error) {
	const op = "get CLI limits"
	data, err := a.get(ctx, op, "/performance/cli/limits")
	if err != nil {
		return nil, err
	}
	var out struct {
		Limits map[string]int `json:"limits"`
	}
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	return orEmpty(out.Limits), nil
}

func (a *APIClient) SetCliLimit(ctx context.Context, country string, limit int) error {
	body := map[string]int{"daily_limit": limit}
	_, err := a.doRaw(ctx, "set CLI limit", http.MethodPost, "/performance/cli/limits/"+url.PathEscape(country), body)
	return err
}

func (a *APIClient) CliUsage(ctx context.Context) (map[string]int, error) {
	const op = "get CLI usage"
	data, err := a.get(ctx, op, "/performance/cli/usage")
	if err != nil {
		return nil, err
	}
	var out struct {
		Usage map[string]int `json:"usage"`
	}
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	return orEmpty(out.Usage), nil
}

func (a *APIClient) ResetCliUsage(ctx context.Context, country string) error {
	path := "/performance/cli/reset"
	if country != "" {
		path += "?country=" + url.QueryEscape(country)
	}
	_, err := a.doRaw(ctx, "reset CLI usage", http.MethodPost, path, nil)
	return err
}

// --- DTMF ---

func (a *APIClient) DtmfConfigs(ctx context.Context) (map[string]domain.DtmfCountryConfig, error) {
	const op = "get DTMF configs"
	data, err := a.get(ctx, op, "/performance/dtmf/configs")
	if err != nil {
		return nil, err
	}
	var out struct {
		Configs map[string]domain.DtmfCountryConfig `json:"configs"`
	}
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	if out.Configs == nil {
		out.Configs = map[string]domain.DtmfCountryConfig{}
	}
	return out.Configs, nil
}

func (a *APIClient) SaveDtmfConfig(ctx context.Context, cfg domain.DtmfCountryConfig) error {
	_, err := a.doRaw(ctx, "save DTMF config", http.MethodPost, "/performance/dtmf/config/"+url.PathEscape(cfg.Country), cfg)
	return err
}

func (a *APIClient) ResetDtmfConfig(ctx context.Context, country string) error {
	_, err := a.doRaw(ctx, "reset DTMF config", http.MethodPost, "/performance/dtmf/config/reset?country="+url.QueryEscape(country), nil)
	return err
}

// --- CLI inventory ---

func (a *APIClient) ListCLIs(ctx context.Context) ([]domain.CliRecord, error) {
	const op = "list CLIs"
	data, err := a.get(ctx, op, "/performance/cli/numbers")
	if err != nil {
		return nil, err
	}
	var out struct {
		Numbers []domain.CliRecord `json:"numbers"`
	}
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	return out.Numbers, nil
}

func orEmpty(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
