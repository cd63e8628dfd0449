package smartconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// SessionTokens is the token set issued by loginByPassword.
type SessionTokens struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// GenerateSession logs in with client code, password, and a TOTP code.
func (c *Client) GenerateSession(ctx context.Context, clientCode, password, totp string) (*SessionTokens, error) {
	data, err := c.post(ctx, "api.login", "", map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       totp,
	})
	if err != nil {
		return nil, err
	}
	var tok SessionTokens
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("smartconnect: parse login data: %w", err)
	}
	if tok.JWTToken == "" {
		return nil, &APIError{Code: "AB1010", Message: "login succeeded but no token issued"}
	}
	return &tok, nil
}

// TerminateSession logs the client out, invalidating the session token.
func (c *Client) TerminateSession(ctx context.Context, accessToken, clientCode string) error {
	_, err := c.post(ctx, "api.logout", accessToken, map[string]string{"clientcode": clientCode})
	return err
}

// OrderParams is the placeOrder request payload.
type OrderParams struct {
	Variety         string `json:"variety"`
	TradingSymbol   string `json:"tradingsymbol"`
	SymbolToken     string `json:"symboltoken"`
	TransactionType string `json:"transactiontype"`
	Exchange        string `json:"exchange"`
	OrderType       string `json:"ordertype"`
	ProductType     string `json:"producttype"`
	Duration        string `json:"duration"`
	Quantity        string `json:"quantity"` // API expects a string
}

// PlaceOrder submits one order and returns the broker order ID.
func (c *Client) PlaceOrder(ctx context.Context, accessToken string, p OrderParams) (string, error) {
	data, err := c.post(ctx, "api.order.place", accessToken, p)
	if err != nil {
		return "", err
	}
	var out struct {
		Script  string `json:"script"`
		OrderID string `json:"orderid"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("smartconnect: parse order data: %w", err)
	}
	if out.OrderID == "" {
		return "", &APIError{Code: "AB9999", Message: "order accepted but no order id returned"}
	}
	return out.OrderID, nil
}

// ScripRow is one instrument record from searchScrip.
type ScripRow struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
	LotSize       string `json:"lotsize"` // API returns a string
}

// LotSizeInt parses the lot size field. Returns 0 when absent or malformed.
func (r ScripRow) LotSizeInt() int {
	n, err := strconv.Atoi(r.LotSize)
	if err != nil {
		return 0
	}
	return n
}

// SearchScrip queries the instrument search endpoint for a symbol on an
// exchange (e.g. "NFO", "NIFTY28AUG2524000CE").
func (c *Client) SearchScrip(ctx context.Context, accessToken, exchange, symbol string) ([]ScripRow, error) {
	data, err := c.post(ctx, "api.search.scrip", accessToken, map[string]string{
		"exchange":    exchange,
		"searchscrip": symbol,
	})
	if err != nil {
		return nil, err
	}
	var rows []ScripRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("smartconnect: parse scrip data: %w", err)
	}
	return rows, nil
}

// RMSLimits is the subset of the getRMS payload the sizing engine needs.
type RMSLimits struct {
	Net           string `json:"net"`
	AvailableCash string `json:"availablecash"`
}

// RMS fetches the account's risk-management limits (margin picture).
func (c *Client) RMS(ctx context.Context, accessToken string) (*RMSLimits, error) {
	data, err := c.post(ctx, "api.rms.limit", accessToken, nil)
	if err != nil {
		return nil, err
	}
	var out RMSLimits
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("smartconnect: parse rms data: %w", err)
	}
	return &out, nil
}

// NetMargin parses the net margin in rupees.
func (r *RMSLimits) NetMargin() (float64, error) {
	v, err := strconv.ParseFloat(r.Net, 64)
	if err != nil {
		return 0, fmt.Errorf("smartconnect: parse net margin %q: %w", r.Net, err)
	}
	return v, nil
}
