package model

import "context"

// ── Broker Port Interfaces ──
// These interfaces decouple the execution engine from the concrete broker
// client (pkg/smartconnect). Tests substitute small fakes.

// OrderRequest carries everything the broker order endpoint needs for one
// placement. Quantity is in units (lots × lot size), not lots.
type OrderRequest struct {
	TradingSymbol   string `json:"trading_symbol"`
	SymbolToken     string `json:"symbol_token"`
	Exchange        string `json:"exchange"`
	TransactionType string `json:"transaction_type"`
	OrderType       string `json:"order_type"`
	ProductType     string `json:"product_type"`
	Variety         string `json:"variety"`
	Duration        string `json:"duration"`
	Quantity        int64  `json:"quantity"`
}

// ScripMatch is one record returned by the broker's instrument search.
type ScripMatch struct {
	TradingSymbol string `json:"trading_symbol"`
	SymbolToken   string `json:"symbol_token"`
	LotSize       int    `json:"lot_size"`
}

// Authenticator performs the login + second-factor exchange.
type Authenticator interface {
	// GenerateSession logs in with clientCode/password and the given TOTP
	// code and returns the issued session.
	GenerateSession(ctx context.Context, clientCode, password, totp string) (*Session, error)
}

// OrderPlacer places one order under an existing session. A nil error means
// the broker accepted the order and returned its ID; any rejection or
// transport failure comes back as a normalized broker error.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest, s *Session) (orderID string, err error)
}

// InstrumentSearcher queries the broker's scrip search endpoint.
type InstrumentSearcher interface {
	SearchScrip(ctx context.Context, exchange, symbol string, s *Session) ([]ScripMatch, error)
}

// MarginProvider reports the account's available margin in rupees.
type MarginProvider interface {
	AvailableMargin(ctx context.Context, s *Session) (float64, error)
}

// ── Storage Port Interfaces ──

// SessionStore caches the broker session across executions (and process
// restarts, for the Redis implementation). Load returns nil, nil when no
// session is cached.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// RiskStore persists the account risk state, most importantly the latched
// circuit-breaker flag, which must survive restarts until an explicit
// external reset. Load returns nil, nil when no state has been saved yet.
type RiskStore interface {
	Load(ctx context.Context) (*RiskState, error)
	Save(ctx context.Context, st *RiskState) error
}

// ExecutionWriter persists the audit trail of an execution and the
// resulting position for external collaborators to display and reconcile.
type ExecutionWriter interface {
	SaveExecution(ctx context.Context, summary *ExecutionSummary) error
	SavePosition(ctx context.Context, pos *Position) error
	Close() error
}
