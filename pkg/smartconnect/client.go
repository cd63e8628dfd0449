// Package smartconnect is a typed HTTP client for the Angel One SmartAPI
// endpoints this system consumes: session generation (login + TOTP),
// scrip search, order placement, RMS limits, and logout.
//
// The broker reports failures in more than one shape (error_type/message
// on auth endpoints, status/errorcode/message elsewhere); every non-success
// response is normalized here into *APIError so callers never branch on
// field names.
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.order.place":  "/rest/secure/angelbroking/order/v1/placeOrder",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
	"api.rms.limit":    "/rest/secure/angelbroking/user/v1/getRMS",
}

// Config configures the client. Only APIKey is required.
type Config struct {
	APIKey  string
	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // per-request; default 7s

	// Client identification headers required by the API.
	ClientLocalIP  string // default 127.0.0.1
	ClientPublicIP string // default 127.0.0.1
	ClientMAC      string // default 00:00:00:00:00:00

	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// Client talks to the SmartAPI REST endpoints. It holds no session state;
// the access token is passed per call so one client can serve concurrent
// leg placements under a shared read-only session.
type Client struct {
	apiKey  string
	rootURL string

	localIP    string
	publicIP   string
	mac        string
	httpClient *http.Client
}

// New creates a SmartAPI client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.ClientLocalIP == "" {
		cfg.ClientLocalIP = "127.0.0.1"
	}
	if cfg.ClientPublicIP == "" {
		cfg.ClientPublicIP = "127.0.0.1"
	}
	if cfg.ClientMAC == "" {
		cfg.ClientMAC = "00:00:00:00:00:00"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		rootURL:    strings.TrimRight(cfg.RootURL, "/"),
		localIP:    cfg.ClientLocalIP,
		publicIP:   cfg.ClientPublicIP,
		mac:        cfg.ClientMAC,
		httpClient: hc,
	}
}

func (c *Client) headers(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", c.localIP)
	h.Set("X-ClientPublicIP", c.publicIP)
	h.Set("X-MACAddress", c.mac)
	h.Set("X-PrivateKey", c.apiKey)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

// envelope is the common SmartAPI response wrapper.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// post sends params as JSON to the named route and decodes the envelope.
// The returned raw data is only valid when err is nil.
func (c *Client) post(ctx context.Context, route, accessToken string, params any) (json.RawMessage, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("smartconnect: unknown route %q", route)
	}

	var body io.Reader
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("smartconnect: encode %s: %w", route, err)
		}
		body = bytes.NewReader(b)
	}

	method := http.MethodPost
	if body == nil {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.rootURL+uri, body)
	if err != nil {
		return nil, fmt.Errorf("smartconnect: build request %s: %w", route, err)
	}
	req.Header = c.headers(accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Route: route, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Route: route, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("smartconnect: parse %s response: %w", route, err)
	}

	// Auth-service failures use error_type/message instead of errorcode.
	if env.ErrorType != "" {
		return nil, &APIError{
			Code:       env.ErrorType,
			Message:    env.Message,
			HTTPStatus: resp.StatusCode,
		}
	}
	if !env.Status {
		return nil, &APIError{
			Code:       env.ErrorCode,
			Message:    env.Message,
			HTTPStatus: resp.StatusCode,
		}
	}
	return env.Data, nil
}
