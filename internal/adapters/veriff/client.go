package veriff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

const (
	headerAuthClient = "X-AUTH-CLIENT"
	headerSignature  = "X-SIGNATURE"

	maxResponseBytes = 1 << 20
)

type Config struct {
	BaseURL    string
	APIKey     string
	Secret     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client talks to the Veriff REST API. Calls are never retried.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	httpClient *http.Client
	nowFn      func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("veriff base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse veriff base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		httpClient: httpClient,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

type createSessionRequest struct {
	Verification createVerification `json:"verification"`
}

type createVerification struct {
	Callback   string        `json:"callback,omitempty"`
	Person     sessionPerson `json:"person"`
	VendorData string        `json:"vendorData"`
	Timestamp  string        `json:"timestamp"`
}

type sessionPerson struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type createSessionResponse struct {
	Status       string `json:"status"`
	Verification *struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		VendorData string `json:"vendorData"`
		Host       string `json:"host"`
		Status     string `json:"status"`
	} `json:"verification"`
}

type decisionResponse struct {
	Status       string `json:"status"`
	Verification *struct {
		ID             string  `json:"id"`
		Code           *int    `json:"code"`
		Status         string  `json:"status"`
		Reason         *string `json:"reason"`
		ReasonCode     *int    `json:"reasonCode"`
		VendorData     string  `json:"vendorData"`
		AcceptanceTime string  `json:"acceptanceTime"`
		DecisionTime   *string `json:"decisionTime"`
	} `json:"verification"`
}

func (c *Client) CreateSession(ctx context.Context, req ports.CreateProviderSessionRequest) (ports.ProviderSession, error) {
	body, err := json.Marshal(createSessionRequest{Verification: createVerification{
		Callback:   req.CallbackURL,
		Person:     sessionPerson{FirstName: req.FirstName, LastName: req.LastName},
		VendorData: req.VendorData,
		Timestamp:  c.nowFn().Format(time.RFC3339Nano),
	}})
	if err != nil {
		return ports.ProviderSession{}, fmt.Errorf("encode veriff session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions/", bytes.NewReader(body))
	if err != nil {
		return ports.ProviderSession{}, fmt.Errorf("build veriff request: %w", err)
	}
	httpReq.Header.Set(headerAuthClient, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(httpReq, "create_session")
	if err != nil {
		return ports.ProviderSession{}, err
	}
	if status < 200 || status > 299 {
		return ports.ProviderSession{}, fmt.Errorf("%w: create session returned %d", domain.ErrProviderUnavailable, status)
	}

	var parsed createSessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ports.ProviderSession{}, fmt.Errorf("%w: malformed create session response", domain.ErrProviderUnavailable)
	}
	if parsed.Verification == nil || parsed.Verification.ID == "" || parsed.Verification.URL == "" {
		return ports.ProviderSession{}, fmt.Errorf("%w: create session response without verification", domain.ErrProviderUnavailable)
	}
	v := parsed.Verification
	return ports.ProviderSession{
		ID:         v.ID,
		URL:        v.URL,
		VendorData: v.VendorData,
		Host:       v.Host,
		Status:     v.Status,
	}, nil
}

func (c *Client) FetchDecision(ctx context.Context, sessionID string) (ports.ProviderDecision, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ports.ProviderDecision{}, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	endpoint := c.baseURL + "/v1/sessions/" + url.PathEscape(sessionID) + "/decision"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.ProviderDecision{}, fmt.Errorf("build veriff request: %w", err)
	}
	httpReq.Header.Set(headerAuthClient, c.apiKey)
	httpReq.Header.Set(headerSignature, security.SignHex(c.secret, []byte(sessionID)))
	httpReq.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(httpReq, "fetch_decision")
	if err != nil {
		return ports.ProviderDecision{}, err
	}
	if status == http.StatusNotFound {
		return ports.ProviderDecision{}, domain.ErrNotFound
	}
	if status < 200 || status > 299 {
		return ports.ProviderDecision{}, fmt.Errorf("%w: fetch decision returned %d", domain.ErrProviderUnavailable, status)
	}

	var parsed decisionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ports.ProviderDecision{}, fmt.Errorf("%w: malformed decision response", domain.ErrProviderUnavailable)
	}
	if parsed.Verification == nil {
		return ports.ProviderDecision{}, domain.ErrNotFound
	}
	v := parsed.Verification
	return ports.ProviderDecision{
		SessionID:      v.ID,
		Status:         v.Status,
		Code:           v.Code,
		Reason:         v.Reason,
		ReasonCode:     v.ReasonCode,
		VendorData:     v.VendorData,
		AcceptanceTime: v.AcceptanceTime,
		DecisionTime:   v.DecisionTime,
	}, nil
}

func (c *Client) do(req *http.Request, operation string) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		providerLogger().Error("veriff request failed",
			"operation", operation,
			"outcome", "failure",
			"error", err,
		)
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}
	providerLogger().Debug("veriff request completed",
		"operation", operation,
		"outcome", "success",
		"status_code", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.StatusCode, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With(
		"service", "M04-User-Service",
		"module", "veriff",
		"layer", "adapter",
	)
}
