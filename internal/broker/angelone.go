package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"execution-systemv1/internal/model"
	"execution-systemv1/pkg/smartconnect"
)

// AngelOne implements the model broker ports over pkg/smartconnect.
// It satisfies model.Authenticator, model.OrderPlacer,
// model.InstrumentSearcher, and model.MarginProvider.
type AngelOne struct {
	sc         *smartconnect.Client
	sessionTTL time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewAngelOne wraps a smartconnect client. sessionTTL is how long an issued
// token is trusted before the session manager logs in again; Angel One
// tokens last the trading day, so a few hours is typical.
func NewAngelOne(sc *smartconnect.Client, sessionTTL time.Duration, log *slog.Logger) *AngelOne {
	return &AngelOne{sc: sc, sessionTTL: sessionTTL, log: log, now: time.Now}
}

// GenerateSession performs the login + TOTP exchange. Any failure is fatal
// and comes back as *AuthError.
func (a *AngelOne) GenerateSession(ctx context.Context, clientCode, password, totp string) (*model.Session, error) {
	tok, err := a.sc.GenerateSession(ctx, clientCode, password, totp)
	if err != nil {
		var apiErr *smartconnect.APIError
		if errors.As(err, &apiErr) {
			return nil, &AuthError{Code: apiErr.Code, Message: apiErr.Message}
		}
		return nil, &AuthError{Code: "NETWORK", Message: err.Error()}
	}
	a.log.Info("broker session generated", slog.String("client_code", clientCode))
	return &model.Session{
		ClientCode:   clientCode,
		AccessToken:  tok.JWTToken,
		RefreshToken: tok.RefreshToken,
		FeedToken:    tok.FeedToken,
		IssuedAt:     a.now(),
		TTL:          a.sessionTTL,
	}, nil
}

// PlaceOrder submits one order under the shared session. Errors are left
// raw here; the scheduler normalizes them per leg.
func (a *AngelOne) PlaceOrder(ctx context.Context, req model.OrderRequest, s *model.Session) (string, error) {
	if s == nil || s.AccessToken == "" {
		return "", &OrderError{Code: "NO_SESSION", Message: "no active broker session", Auth: true}
	}
	return a.sc.PlaceOrder(ctx, s.AccessToken, smartconnect.OrderParams{
		Variety:         req.Variety,
		TradingSymbol:   req.TradingSymbol,
		SymbolToken:     req.SymbolToken,
		TransactionType: req.TransactionType,
		Exchange:        req.Exchange,
		OrderType:       req.OrderType,
		ProductType:     req.ProductType,
		Duration:        req.Duration,
		Quantity:        strconv.FormatInt(req.Quantity, 10),
	})
}

// SearchScrip queries the instrument search endpoint.
func (a *AngelOne) SearchScrip(ctx context.Context, exchange, symbol string, s *model.Session) ([]model.ScripMatch, error) {
	if s == nil || s.AccessToken == "" {
		return nil, fmt.Errorf("search scrip: no active broker session")
	}
	rows, err := a.sc.SearchScrip(ctx, s.AccessToken, exchange, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScripMatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ScripMatch{
			TradingSymbol: r.TradingSymbol,
			SymbolToken:   r.SymbolToken,
			LotSize:       r.LotSizeInt(),
		})
	}
	return out, nil
}

// AvailableMargin reports the net margin from the RMS endpoint in rupees.
func (a *AngelOne) AvailableMargin(ctx context.Context, s *model.Session) (float64, error) {
	if s == nil || s.AccessToken == "" {
		return 0, fmt.Errorf("rms: no active broker session")
	}
	rms, err := a.sc.RMS(ctx, s.AccessToken)
	if err != nil {
		return 0, err
	}
	return rms.NetMargin()
}
