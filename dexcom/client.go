package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/dexcom-browser-source/interfaces"
	"github.com/ruteri/dexcom-browser-source/metrics"
)

const (
	baseURLUS  = "https://share2.dexcom.com/ShareWebServices/Services/"
	baseURLOUS = "https://shareous1.dexcom.com/ShareWebServices/Services/"
	baseURLJP  = "https://share.dexcom.jp/ShareWebServices/Services/"

	applicationID   = "d89443d2-327c-4a6f-89e5-496bbb0317db"
	applicationIDJP = "d8665ade-9673-4e27-9ff6-92db4ce13d13"

	endpointAuthenticate = "General/AuthenticatePublisherAccount"
	endpointLogin        = "General/LoginPublisherAccountById"
	endpointReadings     = "Publisher/ReadPublisherLatestGlucoseValues"

	// MaxMinutes and MaxCount are the provider's limits for one readings query.
	MaxMinutes = 1440
	MaxCount   = 288

	currentReadingMinutes = 10

	// maxBodySize is the maximum accepted response body size (1MB).
	maxBodySize = 1024 * 1024

	defaultTimeout = 10 * time.Second
)

// Region selects the Share deployment the account lives in.
type Region string

const (
	RegionUS  Region = "us"
	RegionOUS Region = "ous"
	RegionJP  Region = "jp"
)

// ParseRegion accepts "us", "ous" and "jp"; the empty string means "us".
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RegionUS, nil
	case RegionUS, RegionOUS, RegionJP:
		return r, nil
	default:
		return "", fmt.Errorf("unknown region %q: expected us, ous or jp", s)
	}
}

func (r Region) baseURL() string {
	switch r {
	case RegionOUS:
		return baseURLOUS
	case RegionJP:
		return baseURLJP
	default:
		return baseURLUS
	}
}

func (r Region) applicationID() string {
	if r == RegionJP {
		return applicationIDJP
	}
	return applicationID
}

// Credentials are passed through to the provider unchanged.
type Credentials struct {
	// Username is the account name, email, phone number or account UUID.
	Username string
	Password string
	Region   Region
}

// Client is a stateless Dexcom Share gateway.
type Client struct {
	creds      Credentials
	baseURL    string
	appID      string
	httpClient *http.Client
	metrics    *metrics.Metrics
	log        *slog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at a different Share deployment, mostly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a gateway for the given credentials.
func NewClient(creds Credentials, log *slog.Logger, opts ...Option) (*Client, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", interfaces.ErrInvalidArgument)
	}
	region, err := ParseRegion(string(creds.Region))
	if err != nil {
		return nil, err
	}
	creds.Region = region
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		creds:      creds,
		baseURL:    region.baseURL(),
		appID:      region.applicationID(),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CurrentReading returns the newest reading of the last ten minutes, or nil if
// there is none.
func (c *Client) CurrentReading(ctx context.Context) (reading *interfaces.GlucoseReading, err error) {
	defer func() { c.metrics.ObserveGatewayCall("current_reading", err) }()

	raw, err := c.fetch(ctx, currentReadingMinutes, 1)
	if err != nil {
		return nil, err
	}
	series := interfaces.NewReadingSeries(raw)
	if len(series) == 0 {
		return nil, nil
	}
	latest := series[len(series)-1]
	return &latest, nil
}

// ReadingsSince returns the readings of the last minutes minutes, oldest first.
func (c *Client) ReadingsSince(ctx context.Context, minutes int) (series interfaces.ReadingSeries, err error) {
	defer func() { c.metrics.ObserveGatewayCall("readings_since", err) }()

	if minutes <= 0 || minutes > MaxMinutes {
		return nil, fmt.Errorf("%w: minutes must be between 1 and %d, got %d", interfaces.ErrInvalidArgument, MaxMinutes, minutes)
	}

	raw, err := c.fetch(ctx, minutes, min(MaxCount, minutes/5+1))
	if err != nil {
		return nil, err
	}
	return interfaces.NewReadingSeries(raw), nil
}

func (c *Client) fetch(ctx context.Context, minutes, maxCount int) ([]interfaces.GlucoseReading, error) {
	sessionID, err := c.login(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("sessionId", sessionID)
	query.Set("minutes", strconv.Itoa(minutes))
	query.Set("maxCount", strconv.Itoa(maxCount))

	var values []wireReading
	if err := c.post(ctx, endpointReadings, query, nil, &values); err != nil {
		return nil, err
	}

	readings := make([]interfaces.GlucoseReading, 0, len(values))
	for _, v := range values {
		reading, err := v.toReading()
		if err != nil {
			c.log.Warn("Skipping malformed reading", "err", err, "wt", v.WT)
			continue
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// login returns a fresh session id.
func (c *Client) login(ctx context.Context) (string, error) {
	accountID := c.creds.Username
	if _, err := uuid.Parse(accountID); err != nil {
		if err := c.post(ctx, endpointAuthenticate, nil, map[string]string{
			"accountName":   c.creds.Username,
			"password":      c.creds.Password,
			"applicationId": c.appID,
		}, &accountID); err != nil {
			return "", err
		}
		if err := requireNonNullUUID(accountID); err != nil {
			return "", fmt.Errorf("%w: invalid account id: %v", interfaces.ErrAuthentication, err)
		}
	}

	var sessionID string
	if err := c.post(ctx, endpointLogin, nil, map[string]string{
		"accountId":     accountID,
		"password":      c.creds.Password,
		"applicationId": c.appID,
	}, &sessionID); err != nil {
		return "", err
	}
	if err := requireNonNullUUID(sessionID); err != nil {
		return "", fmt.Errorf("%w: invalid session id: %v", interfaces.ErrAuthentication, err)
	}
	return sessionID, nil
}

func requireNonNullUUID(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return fmt.Errorf("null uuid")
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrUpstreamUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", interfaces.ErrUpstreamUnavailable, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyFailure(endpoint, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: could not parse response: %v", interfaces.ErrUpstreamUnavailable, endpoint, err)
	}
	return nil
}

// providerError is the error body Share returns alongside non-200 statuses.
type providerError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func classifyFailure(endpoint string, status int, body []byte) error {
	var perr providerError
	_ = json.Unmarshal(body, &perr)

	switch {
	case perr.Code == "AccountPasswordInvalid",
		perr.Code == "SessionIdNotFound",
		perr.Code == "SessionNotValid",
		strings.HasPrefix(perr.Code, "SSO_Authenticate"):
		return fmt.Errorf("%w: %s: %s %s", interfaces.ErrAuthentication, endpoint, perr.Code, perr.Message)
	case perr.Code == "InvalidArgument":
		return fmt.Errorf("%w: %s: %s", interfaces.ErrInvalidArgument, endpoint, perr.Message)
	case perr.Code == "" && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return fmt.Errorf("%w: %s returned %d", interfaces.ErrAuthentication, endpoint, status)
	case perr.Code != "":
		return fmt.Errorf("%w: %s returned %d: %s %s", interfaces.ErrUpstreamUnavailable, endpoint, status, perr.Code, perr.Message)
	default:
		return fmt.Errorf("%w: %s returned %d", interfaces.ErrUpstreamUnavailable, endpoint, status)
	}
}
